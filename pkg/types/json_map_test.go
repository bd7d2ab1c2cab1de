package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONMapScanAcceptsBytesAndStrings(t *testing.T) {
	var fromBytes JSONMap
	require.NoError(t, fromBytes.Scan([]byte(`{"gateway":"flw","attempt":2}`)))
	require.Equal(t, "flw", fromBytes["gateway"])
	require.EqualValues(t, 2, fromBytes["attempt"])

	var fromString JSONMap
	require.NoError(t, fromString.Scan(`{"note":"x"}`))
	require.Equal(t, "x", fromString["note"])

	var empty JSONMap
	require.NoError(t, empty.Scan(nil))
	require.Nil(t, empty)

	require.Error(t, empty.Scan(42))
}

func TestJSONMapValueNilIsNull(t *testing.T) {
	var m JSONMap
	v, err := m.Value()
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = JSONMap{"k": "v"}.Value()
	require.NoError(t, err)
	require.JSONEq(t, `{"k":"v"}`, v.(string))
}

func TestCoordinatesValidate(t *testing.T) {
	require.NoError(t, Coordinates{Latitude: 6.45, Longitude: 3.39}.Validate())
	require.Error(t, Coordinates{Latitude: 91}.Validate())
	require.Error(t, Coordinates{Longitude: -181}.Validate())
}
