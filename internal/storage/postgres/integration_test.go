//go:build integration

package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"estate_tracker/internal/diff"
	"estate_tracker/internal/domain"
	"estate_tracker/internal/normalize"
	"estate_tracker/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
	conn      *Conn

	sourceID uuid.UUID
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_schema.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
	s.conn = NewConn(db, 3)
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	for _, table := range []string{
		"queue_entries", "user_preferences", "users", "listing_changes", "images",
		"raw_data", "properties", "listings", "sellers", "agents", "sources", "errors", "reports",
	} {
		_, err := s.db.ExecContext(s.ctx, "DELETE FROM "+table)
		s.Require().NoError(err)
	}

	id, err := NewSourceStore(s.conn).Insert(s.ctx, &domain.Source{
		ID:      uuid.New(),
		Name:    "nekretnine",
		BaseURL: "https://www.nekretnine.test",
	})
	s.Require().NoError(err)
	s.sourceID = id
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) listing(url string, price float64) *domain.Listing {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Listing{
		ID:            uuid.New(),
		SourceID:      s.sourceID,
		URL:           url,
		Title:         "Dvosoban stan",
		Price:         price,
		PriceCurrency: utils.Ptr("EUR"),
		Status:        domain.StatusActive,
		City:          utils.Ptr("Beograd"),
		Municipality:  utils.Ptr("Vračar"),
		FirstSeenAt:   now,
		LastSeenAt:    now,
	}
}

func (s *PostgresIntegrationSuite) insertListing(url string, price float64, size, rooms float64) uuid.UUID {
	id, err := NewListingStore(s.conn).Upsert(s.ctx, s.listing(url, price))
	s.Require().NoError(err)
	s.Require().NoError(NewPropertyStore(s.conn).Insert(s.ctx, &domain.Property{
		ID:        uuid.New(),
		ListingID: id,
		SizeM2:    utils.Ptr(size),
		Rooms:     utils.Ptr(rooms),
	}))
	return id
}

func (s *PostgresIntegrationSuite) TestListingStore_UpsertIsKeyedByURL() {
	store := NewListingStore(s.conn)
	url := "https://www.nekretnine.test/stan/1"

	first := s.listing(url, 100000)
	id, err := store.Upsert(s.ctx, first)
	s.Require().NoError(err)
	s.Equal(first.ID, id)

	second := s.listing(url, 100000)
	second.FirstSeenAt = first.FirstSeenAt.Add(time.Hour)
	second.LastSeenAt = second.FirstSeenAt
	again, err := store.Upsert(s.ctx, second)
	s.Require().NoError(err)
	s.Equal(id, again)

	var count int
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM listings WHERE url = $1", url))
	s.Equal(1, count)

	snap, err := store.GetSnapshotByURL(s.ctx, url)
	s.Require().NoError(err)
	s.True(first.FirstSeenAt.Equal(snap.Listing.FirstSeenAt))
	s.True(second.LastSeenAt.Equal(snap.Listing.LastSeenAt))
	s.Nil(snap.Property)
	s.Nil(snap.RawDataID)
}

func (s *PostgresIntegrationSuite) TestSnapshot_StoredValuesDiffClean() {
	item := &domain.ScrapedListing{
		URL:               "https://www.nekretnine.test/stan/roundtrip",
		Title:             "Trosoban stan, Vračar ",
		ShortDescription:  utils.Ptr("Uknjižen, odmah useljiv"),
		DetailDescription: utils.Ptr("Stan je renoviran 2021."),
		Price:             domain.FlexString("123456.78"),
		PriceCurrency:     utils.Ptr("EUR"),
		Status:            domain.StatusActive,
		ValidFrom:         utils.Ptr("2024-05-01T08:30:15.123Z"),
		ValidTo:           utils.Ptr("2024-08-01"),
		TotalViews:        domain.FlexNumber(1543),
		Address: domain.ScrapedAddress{
			City:          utils.Ptr("Beograd"),
			Municipality:  utils.Ptr("Vračar"),
			MicroLocation: utils.Ptr("Crveni krst"),
			Latitude:      utils.Ptr(44.7981234567),
			Longitude:     utils.Ptr(20.4812345678),
		},
		Property: domain.ScrapedProperty{
			PropertyType:  utils.Ptr("apartment"),
			BuildingType:  utils.Ptr("old"),
			SizeM2:        domain.FlexString("72.35"),
			FloorNumber:   domain.FlexString("3+"),
			TotalFloors:   domain.FlexNumber(5),
			Rooms:         domain.FlexString("3.5"),
			PropertyState: utils.Ptr("renovated"),
		},
	}
	seenAt := time.Now().UTC().Truncate(time.Second)

	listing := normalize.Listing(item, uuid.New(), s.sourceID, nil, seenAt)
	id, err := NewListingStore(s.conn).Upsert(s.ctx, &listing)
	s.Require().NoError(err)
	property := normalize.Property(item, uuid.New(), id)
	s.Require().NoError(NewPropertyStore(s.conn).Insert(s.ctx, &property))

	snap, err := NewListingStore(s.conn).GetSnapshotByURL(s.ctx, item.URL)
	s.Require().NoError(err)
	s.Require().NotNil(snap.Property)

	// The next crawl of the same page normalizes to the same values.
	next := normalize.Listing(item, id, s.sourceID, nil, seenAt.Add(time.Hour))
	nextProperty := normalize.Property(item, uuid.New(), id)
	s.Empty(diff.Diff(snap, next, &nextProperty))
}

func (s *PostgresIntegrationSuite) TestListingStore_SnapshotNotFound() {
	_, err := NewListingStore(s.conn).GetSnapshotByURL(s.ctx, "https://www.nekretnine.test/missing")
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestListingStore_BlankTitleRejected() {
	for _, title := range []string{"", "   ", "\t\n"} {
		l := s.listing("https://www.nekretnine.test/stan/dead", 100000)
		l.Title = title

		_, err := NewListingStore(s.conn).Upsert(s.ctx, l)

		s.Require().Error(err, "title %q", title)
		s.Equal(domain.KindFatal, domain.KindOf(err))
	}
}

func (s *PostgresIntegrationSuite) TestListingStore_MarkRemoved() {
	store := NewListingStore(s.conn)
	url := "https://www.nekretnine.test/stan/2"
	_, err := store.Upsert(s.ctx, s.listing(url, 100000))
	s.Require().NoError(err)

	removed, err := store.MarkRemoved(s.ctx, url)
	s.Require().NoError(err)
	s.True(removed)

	removed, err = store.MarkRemoved(s.ctx, url)
	s.Require().NoError(err)
	s.False(removed)

	snap, err := store.GetSnapshotByURL(s.ctx, url)
	s.Require().NoError(err)
	s.Equal(domain.StatusRemoved, snap.Listing.Status)
}

func (s *PostgresIntegrationSuite) TestApplyChanges_WritesSentinelAndProperty() {
	url := "https://www.nekretnine.test/stan/3"
	id := s.insertListing(url, 100000, 54, 2)
	listings := NewListingStore(s.conn)
	properties := NewPropertyStore(s.conn)

	err := listings.ApplyChanges(s.ctx, id, []domain.ListingChange{
		{Field: domain.FieldPrice, OldValue: utils.Ptr("100000"), NewValue: nil},
		{Field: domain.FieldCity, OldValue: utils.Ptr("Beograd"), NewValue: utils.Ptr("Novi Sad")},
	})
	s.Require().NoError(err)
	s.Require().NoError(properties.ApplyChanges(s.ctx, id, []domain.ListingChange{
		{Field: domain.FieldRooms, OldValue: utils.Ptr("2"), NewValue: utils.Ptr("2.5")},
	}))

	snap, err := listings.GetSnapshotByURL(s.ctx, url)
	s.Require().NoError(err)
	s.Equal(domain.PriceUnknown, snap.Listing.Price)
	s.Equal("Novi Sad", *snap.Listing.City)
	s.Require().NotNil(snap.Property)
	s.Equal(2.5, *snap.Property.Rooms)
}

func (s *PostgresIntegrationSuite) TestPropertyStore_SecondInsertConflicts() {
	id := s.insertListing("https://www.nekretnine.test/stan/4", 100000, 54, 2)
	store := NewPropertyStore(s.conn)

	exists, err := store.Exists(s.ctx, id)
	s.Require().NoError(err)
	s.True(exists)

	err = store.Insert(s.ctx, &domain.Property{ID: uuid.New(), ListingID: id})
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrConflict)
}

func (s *PostgresIntegrationSuite) TestRawDataAndSnapshotReference() {
	url := "https://www.nekretnine.test/stan/5"
	id := s.insertListing(url, 100000, 54, 2)
	store := NewRawDataStore(s.conn)

	first := &domain.RawData{ID: uuid.New(), ListingID: id, HTML: "<html>1</html>", Data: []byte(`{"price":"100000"}`)}
	s.Require().NoError(store.Insert(s.ctx, first))
	time.Sleep(10 * time.Millisecond)
	second := &domain.RawData{ID: uuid.New(), ListingID: id, HTML: "<html>2</html>"}
	s.Require().NoError(store.Insert(s.ctx, second))

	snap, err := NewListingStore(s.conn).GetSnapshotByURL(s.ctx, url)
	s.Require().NoError(err)
	s.Require().NotNil(snap.RawDataID)
	s.Equal(second.ID, *snap.RawDataID)
}

func (s *PostgresIntegrationSuite) TestImageStore_UpsertBatchDeduplicates() {
	id := s.insertListing("https://www.nekretnine.test/stan/6", 100000, 54, 2)
	store := NewImageStore(s.conn)

	s.Require().NoError(store.UpsertBatch(s.ctx, id, []string{"https://img.test/1.jpg", "https://img.test/1.jpg", "https://img.test/2.jpg"}))
	s.Require().NoError(store.UpsertBatch(s.ctx, id, []string{"https://img.test/2.jpg", "https://img.test/3.jpg"}))

	var count int
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM images WHERE listing_id = $1", id))
	s.Equal(3, count)
}

func (s *PostgresIntegrationSuite) TestChangeStore_InsertAndList() {
	id := s.insertListing("https://www.nekretnine.test/stan/7", 110000, 54, 2)
	store := NewChangeStore(s.conn)
	at := time.Now().UTC().Truncate(time.Second)

	err := store.InsertBatch(s.ctx, []domain.ListingChange{
		{ID: uuid.New(), ListingID: id, ChangeType: "price_change", Field: domain.FieldPrice,
			OldValue: utils.Ptr("100000"), NewValue: utils.Ptr("110000"), ChangedAt: at},
		{ID: uuid.New(), ListingID: id, ChangeType: "title_change", Field: domain.FieldTitle,
			OldValue: utils.Ptr("Stan"), NewValue: utils.Ptr("Dvosoban stan"), ChangedAt: at},
	})
	s.Require().NoError(err)

	changes, err := store.ListByListing(s.ctx, id)
	s.Require().NoError(err)
	s.Len(changes, 2)
	fields := []domain.Field{changes[0].Field, changes[1].Field}
	s.ElementsMatch([]domain.Field{domain.FieldPrice, domain.FieldTitle}, fields)
}

func (s *PostgresIntegrationSuite) TestErrorStore_DeduplicatesAndClears() {
	store := NewErrorStore(s.conn)
	url := "https://www.nekretnine.test/stan/8"
	rec := domain.NewErrorRecord(url, domain.ErrorTypeListingInsertion, errors.New("value too long"))

	s.Require().NoError(store.Record(s.ctx, rec))
	s.Require().NoError(store.Record(s.ctx, rec))
	s.Require().NoError(store.Record(s.ctx, domain.NewErrorRecord(url, domain.ErrorTypeImageInsert, errors.New("timeout"))))

	var count int
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM errors WHERE url = $1", url))
	s.Equal(2, count)

	cleared, err := store.ClearURL(s.ctx, url)
	s.Require().NoError(err)
	s.Equal(int64(2), cleared)
}

func (s *PostgresIntegrationSuite) TestSourceStore_DuplicateBaseURLConflicts() {
	store := NewSourceStore(s.conn)

	_, err := store.Insert(s.ctx, &domain.Source{ID: uuid.New(), Name: "dup", BaseURL: "https://www.nekretnine.test"})
	s.ErrorIs(err, domain.ErrConflict)

	src, err := store.GetByBaseURL(s.ctx, "https://www.nekretnine.test")
	s.Require().NoError(err)
	s.Equal(s.sourceID, src.ID)
}

func (s *PostgresIntegrationSuite) TestSellerStore_FindInsertAttach() {
	store := NewSellerStore(s.conn)

	_, err := store.FindByIdentity(s.ctx, "77", "Agencija Kvadrat", domain.SellerAgency)
	s.ErrorIs(err, domain.ErrNotFound)

	id, err := store.Insert(s.ctx, &domain.Seller{
		ID:             uuid.New(),
		SourceSellerID: "77",
		Name:           "Agencija Kvadrat",
		SellerType:     domain.SellerAgency,
	})
	s.Require().NoError(err)

	found, err := store.FindByIdentity(s.ctx, "77", "Agencija Kvadrat", domain.SellerAgency)
	s.Require().NoError(err)
	s.Equal(id, found.ID)
	s.Nil(found.AgentID)

	linked, err := store.AttachAgent(s.ctx, id, "AG-1")
	s.Require().NoError(err)
	s.False(linked)

	agentID := uuid.New()
	_, err = s.db.ExecContext(s.ctx, "INSERT INTO agents (id, registry_number) VALUES ($1, $2)", agentID, "AG-1")
	s.Require().NoError(err)

	linked, err = store.AttachAgent(s.ctx, id, "AG-1")
	s.Require().NoError(err)
	s.True(linked)

	found, err = store.FindByIdentity(s.ctx, "77", "Agencija Kvadrat", domain.SellerAgency)
	s.Require().NoError(err)
	s.Equal(agentID, *found.AgentID)
}

func (s *PostgresIntegrationSuite) TestReportStore_CreateAndFinish() {
	store := NewReportStore(s.conn)
	report := &domain.Report{ID: uuid.New(), SourceName: "nekretnine"}
	s.Require().NoError(store.Create(s.ctx, report))

	report.Apply(&domain.RunStats{Pages: 3, Listings: 60, DistinctURLs: 58, New: 4, Changed: 2, Duration: 90 * time.Second})
	s.Require().NoError(store.Finish(s.ctx, report))

	var got struct {
		Pages   int     `db:"total_pages"`
		Changed int     `db:"total_changed_listings"`
		Elapsed float64 `db:"elapsed_time_seconds"`
	}
	s.Require().NoError(s.db.GetContext(s.ctx, &got,
		"SELECT total_pages, total_changed_listings, elapsed_time_seconds FROM reports WHERE id = $1", report.ID))
	s.Equal(3, got.Pages)
	s.Equal(2, got.Changed)
	s.Equal(90.0, got.Elapsed)

	err := store.Finish(s.ctx, &domain.Report{ID: uuid.New()})
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestUserStore_PreferencesAndSubscribers() {
	store := NewUserStore(s.conn)

	id, inserted, err := store.Upsert(s.ctx, &domain.User{ID: uuid.New(), ChatID: "42"})
	s.Require().NoError(err)
	s.True(inserted)

	again, inserted, err := store.Upsert(s.ctx, &domain.User{ID: uuid.New(), ChatID: "42", Username: utils.Ptr("ana")})
	s.Require().NoError(err)
	s.False(inserted)
	s.Equal(id, again)

	def := domain.DefaultPreference(id)
	s.Require().NoError(store.SavePreference(s.ctx, &def, true))

	custom := def
	custom.Cities = []string{"Novi Sad"}
	s.Require().NoError(store.SavePreference(s.ctx, &custom, true))

	pref, err := store.GetPreference(s.ctx, id)
	s.Require().NoError(err)
	s.Equal([]string{"Beograd"}, pref.Cities)

	s.Require().NoError(store.SavePreference(s.ctx, &custom, false))
	pref, err = store.GetPreference(s.ctx, id)
	s.Require().NoError(err)
	s.Equal([]string{"Novi Sad"}, pref.Cities)
	s.Equal([]float64{3}, pref.Rooms)

	subs, err := store.ListSubscribers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(subs, 1)
	s.Equal("42", subs[0].User.ChatID)
	s.Equal([]string{"Novi Sad"}, subs[0].Preference.Cities)
}

func (s *PostgresIntegrationSuite) TestQueueStore_AtMostOneEntryPerPair() {
	listingID := s.insertListing("https://www.nekretnine.test/stan/9", 100000, 54, 2)
	userID, _, err := NewUserStore(s.conn).Upsert(s.ctx, &domain.User{ID: uuid.New(), ChatID: "42"})
	s.Require().NoError(err)
	store := NewQueueStore(s.conn)

	s.Require().NoError(store.Insert(s.ctx, &domain.QueueEntry{ID: uuid.New(), ListingID: listingID, UserID: userID}))
	err = store.Insert(s.ctx, &domain.QueueEntry{ID: uuid.New(), ListingID: listingID, UserID: userID})
	s.ErrorIs(err, domain.ErrConflict)

	queued, err := store.QueuedListingIDs(s.ctx, userID, []uuid.UUID{listingID, uuid.New()})
	s.Require().NoError(err)
	s.Equal(map[uuid.UUID]bool{listingID: true}, queued)
}

func (s *PostgresIntegrationSuite) TestQueueStore_PendingAndMarkSent() {
	complete := s.insertListing("https://www.nekretnine.test/stan/10", 100000, 54, 2)
	noRooms := s.insertListing("https://www.nekretnine.test/stan/11", 100000, 54, 0)
	userID, _, err := NewUserStore(s.conn).Upsert(s.ctx, &domain.User{ID: uuid.New(), ChatID: "42"})
	s.Require().NoError(err)
	store := NewQueueStore(s.conn)

	entryID := uuid.New()
	s.Require().NoError(store.Insert(s.ctx, &domain.QueueEntry{ID: entryID, ListingID: complete, UserID: userID}))
	s.Require().NoError(store.Insert(s.ctx, &domain.QueueEntry{ID: uuid.New(), ListingID: noRooms, UserID: userID}))

	pending, err := store.ListPending(s.ctx, 20)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(entryID, pending[0].EntryID)
	s.Equal("42", pending[0].ChatID)
	s.Equal(54.0, *pending[0].Listing.SizeM2)

	s.Require().NoError(store.MarkSent(s.ctx, entryID))
	pending, err = store.ListPending(s.ctx, 20)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *PostgresIntegrationSuite) TestListingStore_Candidates() {
	since := time.Now().UTC().Add(-time.Hour)
	fresh := s.insertListing("https://www.nekretnine.test/stan/12", 100000, 54, 2)
	s.insertListing("https://www.nekretnine.test/stan/13", -1, 54, 2)
	s.insertListing("https://www.other.test/stan/14", 100000, 54, 2)

	candidates, err := NewListingStore(s.conn).ListCandidates(s.ctx, since, "nekretnine")
	s.Require().NoError(err)
	s.Require().Len(candidates, 1)
	s.Equal(fresh, candidates[0].ID)
	s.Equal("Beograd", *candidates[0].City)

	active, err := NewListingStore(s.conn).ListActive(s.ctx, "nekretnine", 10)
	s.Require().NoError(err)
	s.Len(active, 2)
}

func (s *PostgresIntegrationSuite) TestTransactionManager_RollbackOnError() {
	tm := NewTransactionManager(s.conn)
	store := NewListingStore(s.conn)
	url := "https://www.nekretnine.test/stan/15"

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		if _, err := store.Upsert(txCtx, s.listing(url, 100000)); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Require().Error(err)

	_, err = store.GetSnapshotByURL(s.ctx, url)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestTransactionManager_Commit() {
	tm := NewTransactionManager(s.conn)
	store := NewListingStore(s.conn)
	url := "https://www.nekretnine.test/stan/16"

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		_, err := store.Upsert(txCtx, s.listing(url, 100000))
		return err
	})
	s.Require().NoError(err)

	_, err = store.GetSnapshotByURL(s.ctx, url)
	s.NoError(err)
}
