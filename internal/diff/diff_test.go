package diff

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estate_tracker/internal/domain"
	"estate_tracker/testdata/utils"
)

func baseListing() domain.Listing {
	return domain.Listing{
		ID:     uuid.New(),
		URL:    "https://x/1",
		Title:  "Two room flat",
		Price:  100000,
		Status: domain.StatusActive,
		City:   utils.Ptr("Beograd"),
	}
}

func baseProperty() *domain.Property {
	return &domain.Property{
		SizeM2:      utils.Ptr(54.0),
		Rooms:       utils.Ptr(2.0),
		FloorNumber: utils.Ptr("3"),
	}
}

func TestDiff_NoSnapshot(t *testing.T) {
	assert.Nil(t, Diff(nil, baseListing(), baseProperty()))
}

func TestDiff_Unchanged(t *testing.T) {
	prev := &domain.Snapshot{Listing: baseListing(), Property: baseProperty()}
	assert.Empty(t, Diff(prev, baseListing(), baseProperty()))
}

func TestDiff_PriceOnly(t *testing.T) {
	prev := &domain.Snapshot{Listing: baseListing(), Property: baseProperty()}
	next := baseListing()
	next.Price = 120000

	changes := Diff(prev, next, baseProperty())
	require.Len(t, changes, 1)
	assert.Equal(t, domain.FieldPrice, changes[0].Field)
	assert.Equal(t, "100000", *changes[0].Old)
	assert.Equal(t, "120000", *changes[0].New)
}

func TestDiff_RepresentationDifferencesIgnored(t *testing.T) {
	prevListing := baseListing()
	prevListing.ValidFrom = utils.Ptr(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	prevListing.ShortDescription = utils.Ptr("")
	prevProp := baseProperty()
	prevProp.FloorNumber = utils.Ptr("3+")

	next := baseListing()
	next.ValidFrom = utils.Ptr(time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600)))
	next.Price = 100000.001

	prev := &domain.Snapshot{Listing: prevListing, Property: prevProp}
	assert.Empty(t, Diff(prev, next, baseProperty()))
}

func TestDiff_UnknownPriceVersusZero(t *testing.T) {
	prevListing := baseListing()
	prevListing.Price = domain.PriceUnknown
	next := baseListing()
	next.Price = 0

	prev := &domain.Snapshot{Listing: prevListing, Property: baseProperty()}
	assert.Empty(t, Diff(prev, next, baseProperty()))
}

func TestDiff_PropertyAndListingFieldsInOrder(t *testing.T) {
	prev := &domain.Snapshot{Listing: baseListing(), Property: baseProperty()}
	next := baseListing()
	next.City = utils.Ptr("Novi Sad")
	next.Status = domain.StatusRemoved
	nextProp := baseProperty()
	nextProp.Rooms = utils.Ptr(2.5)
	nextProp.SizeM2 = nil

	changes := Diff(prev, next, nextProp)
	fields := make([]domain.Field, 0, len(changes))
	for _, c := range changes {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []domain.Field{domain.FieldStatus, domain.FieldCity, domain.FieldSizeM2, domain.FieldRooms}, fields)
	assert.Equal(t, "54", *changes[2].Old)
	assert.Nil(t, changes[2].New)
}

func TestDiff_SkipsPropertyWhenSnapshotHasNone(t *testing.T) {
	prev := &domain.Snapshot{Listing: baseListing()}
	assert.Empty(t, Diff(prev, baseListing(), baseProperty()))
}
