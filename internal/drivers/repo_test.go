package drivers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packdrop-backend/internal/repo/repotest"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
)

func TestClaimForAssignmentOnlyOnce(t *testing.T) {
	db := repotest.NewDB(t)
	repo := NewRepository(db)
	driver := repotest.SeedDriver(t, db)
	ctx := context.Background()

	claimed, err := repo.ClaimForAssignment(ctx, driver.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = repo.ClaimForAssignment(ctx, driver.ID)
	require.NoError(t, err)
	require.False(t, claimed)

	require.NoError(t, repo.Release(ctx, driver.ID))
	reloaded, err := repo.FindByID(ctx, driver.ID)
	require.NoError(t, err)
	require.True(t, reloaded.IsAvailable)
}

func TestClaimForAssignmentRejectsUnverified(t *testing.T) {
	db := repotest.NewDB(t)
	repo := NewRepository(db)
	driver := repotest.SeedDriver(t, db, func(d *models.Driver) { d.IsVerified = false })

	claimed, err := repo.ClaimForAssignment(context.Background(), driver.ID)
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestFindAvailableByIDsFiltersBusyDrivers(t *testing.T) {
	db := repotest.NewDB(t)
	repo := NewRepository(db)
	free := repotest.SeedDriver(t, db)
	busy := repotest.SeedDriver(t, db, func(d *models.Driver) { d.IsAvailable = false })

	found, err := repo.FindAvailableByIDs(context.Background(), []uuid.UUID{free.ID, busy.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, free.ID, found[0].ID)
}

func TestSetAvailabilityUnknownDriver(t *testing.T) {
	repo := NewRepository(repotest.NewDB(t))
	err := repo.SetAvailability(context.Background(), uuid.New(), true)
	require.Error(t, err)
}

func TestHasActiveDelivery(t *testing.T) {
	db := repotest.NewDB(t)
	repo := NewRepository(db)
	vendor := repotest.SeedVendor(t, db)
	driver := repotest.SeedDriver(t, db)
	ctx := context.Background()

	done := repotest.SeedOrder(t, db, vendor.ID)
	repotest.SeedDelivery(t, db, done.ID, enums.DeliveryStatusDelivered, &driver.ID)
	active, err := repo.HasActiveDelivery(ctx, driver.ID)
	require.NoError(t, err)
	require.False(t, active)

	open := repotest.SeedOrder(t, db, vendor.ID)
	repotest.SeedDelivery(t, db, open.ID, enums.DeliveryStatusInTransit, &driver.ID)
	active, err = repo.HasActiveDelivery(ctx, driver.ID)
	require.NoError(t, err)
	require.True(t, active)
}

func TestRecomputeRatingAveragesRatedDeliveries(t *testing.T) {
	db := repotest.NewDB(t)
	repo := NewRepository(db)
	vendor := repotest.SeedVendor(t, db)
	driver := repotest.SeedDriver(t, db)
	ctx := context.Background()

	for _, score := range []int{5, 4, 4} {
		order := repotest.SeedOrder(t, db, vendor.ID)
		d := repotest.SeedDelivery(t, db, order.ID, enums.DeliveryStatusDelivered, &driver.ID)
		require.NoError(t, db.Model(&models.Delivery{}).Where("id = ?", d.ID).Update("rating", score).Error)
	}
	unrated := repotest.SeedOrder(t, db, vendor.ID)
	repotest.SeedDelivery(t, db, unrated.ID, enums.DeliveryStatusDelivered, &driver.ID)

	require.NoError(t, repo.RecomputeRating(ctx, driver.ID))
	reloaded, err := repo.FindByID(ctx, driver.ID)
	require.NoError(t, err)
	require.True(t, reloaded.Rating.Equal(repotest.Money(t, "4.33")), "got %s", reloaded.Rating)
}
