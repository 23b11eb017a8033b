// Mocks of the interfaces in internal/service/interfaces.go, kept in
// mockgen's output format. After changing an interface, replace this file
// with the output of go generate ./internal/service, which runs:
//
//	mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

// Package mocks holds GoMock mocks of the service interfaces.
package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	domain "estate_tracker/internal/domain"
	uuid "github.com/google/uuid"
	gomock "go.uber.org/mock/gomock"
)

// MockSourceStore is a mock of SourceStore interface.
type MockSourceStore struct {
	ctrl     *gomock.Controller
	recorder *MockSourceStoreMockRecorder
	isgomock struct{}
}

// MockSourceStoreMockRecorder is the mock recorder for MockSourceStore.
type MockSourceStoreMockRecorder struct {
	mock *MockSourceStore
}

// NewMockSourceStore creates a new mock instance.
func NewMockSourceStore(ctrl *gomock.Controller) *MockSourceStore {
	mock := &MockSourceStore{ctrl: ctrl}
	mock.recorder = &MockSourceStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSourceStore) EXPECT() *MockSourceStoreMockRecorder {
	return m.recorder
}

// GetByBaseURL mocks base method.
func (m *MockSourceStore) GetByBaseURL(ctx context.Context, baseURL string) (*domain.Source, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByBaseURL", ctx, baseURL)
	ret0, _ := ret[0].(*domain.Source)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByBaseURL indicates an expected call of GetByBaseURL.
func (mr *MockSourceStoreMockRecorder) GetByBaseURL(ctx, baseURL any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByBaseURL", reflect.TypeOf((*MockSourceStore)(nil).GetByBaseURL), ctx, baseURL)
}

// Insert mocks base method.
func (m *MockSourceStore) Insert(ctx context.Context, src *domain.Source) (uuid.UUID, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Insert", ctx, src)
	ret0, _ := ret[0].(uuid.UUID)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Insert indicates an expected call of Insert.
func (mr *MockSourceStoreMockRecorder) Insert(ctx, src any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Insert", reflect.TypeOf((*MockSourceStore)(nil).Insert), ctx, src)
}

// MockSellerStore is a mock of SellerStore interface.
type MockSellerStore struct {
	ctrl     *gomock.Controller
	recorder *MockSellerStoreMockRecorder
	isgomock struct{}
}

// MockSellerStoreMockRecorder is the mock recorder for MockSellerStore.
type MockSellerStoreMockRecorder struct {
	mock *MockSellerStore
}

// NewMockSellerStore creates a new mock instance.
func NewMockSellerStore(ctrl *gomock.Controller) *MockSellerStore {
	mock := &MockSellerStore{ctrl: ctrl}
	mock.recorder = &MockSellerStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSellerStore) EXPECT() *MockSellerStoreMockRecorder {
	return m.recorder
}

// AttachAgent mocks base method.
func (m *MockSellerStore) AttachAgent(ctx context.Context, sellerID uuid.UUID, registryNumber string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AttachAgent", ctx, sellerID, registryNumber)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// AttachAgent indicates an expected call of AttachAgent.
func (mr *MockSellerStoreMockRecorder) AttachAgent(ctx, sellerID, registryNumber any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AttachAgent", reflect.TypeOf((*MockSellerStore)(nil).AttachAgent), ctx, sellerID, registryNumber)
}

// FindByIdentity mocks base method.
func (m *MockSellerStore) FindByIdentity(ctx context.Context, sourceSellerID string, name string, sellerType domain.SellerType) (*domain.Seller, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FindByIdentity", ctx, sourceSellerID, name, sellerType)
	ret0, _ := ret[0].(*domain.Seller)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FindByIdentity indicates an expected call of FindByIdentity.
func (mr *MockSellerStoreMockRecorder) FindByIdentity(ctx, sourceSellerID, name, sellerType any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FindByIdentity", reflect.TypeOf((*MockSellerStore)(nil).FindByIdentity), ctx, sourceSellerID, name, sellerType)
}

// Insert mocks base method.
func (m *MockSellerStore) Insert(ctx context.Context, seller *domain.Seller) (uuid.UUID, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Insert", ctx, seller)
	ret0, _ := ret[0].(uuid.UUID)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Insert indicates an expected call of Insert.
func (mr *MockSellerStoreMockRecorder) Insert(ctx, seller any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Insert", reflect.TypeOf((*MockSellerStore)(nil).Insert), ctx, seller)
}

// MockListingStore is a mock of ListingStore interface.
type MockListingStore struct {
	ctrl     *gomock.Controller
	recorder *MockListingStoreMockRecorder
	isgomock struct{}
}

// MockListingStoreMockRecorder is the mock recorder for MockListingStore.
type MockListingStoreMockRecorder struct {
	mock *MockListingStore
}

// NewMockListingStore creates a new mock instance.
func NewMockListingStore(ctrl *gomock.Controller) *MockListingStore {
	mock := &MockListingStore{ctrl: ctrl}
	mock.recorder = &MockListingStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockListingStore) EXPECT() *MockListingStoreMockRecorder {
	return m.recorder
}

// ApplyChanges mocks base method.
func (m *MockListingStore) ApplyChanges(ctx context.Context, listingID uuid.UUID, changes []domain.ListingChange) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ApplyChanges", ctx, listingID, changes)
	ret0, _ := ret[0].(error)
	return ret0
}

// ApplyChanges indicates an expected call of ApplyChanges.
func (mr *MockListingStoreMockRecorder) ApplyChanges(ctx, listingID, changes any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ApplyChanges", reflect.TypeOf((*MockListingStore)(nil).ApplyChanges), ctx, listingID, changes)
}

// GetSnapshotByURL mocks base method.
func (m *MockListingStore) GetSnapshotByURL(ctx context.Context, url string) (*domain.Snapshot, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetSnapshotByURL", ctx, url)
	ret0, _ := ret[0].(*domain.Snapshot)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetSnapshotByURL indicates an expected call of GetSnapshotByURL.
func (mr *MockListingStoreMockRecorder) GetSnapshotByURL(ctx, url any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetSnapshotByURL", reflect.TypeOf((*MockListingStore)(nil).GetSnapshotByURL), ctx, url)
}

// ListActive mocks base method.
func (m *MockListingStore) ListActive(ctx context.Context, site string, limit int) ([]domain.ListingRef, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListActive", ctx, site, limit)
	ret0, _ := ret[0].([]domain.ListingRef)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListActive indicates an expected call of ListActive.
func (mr *MockListingStoreMockRecorder) ListActive(ctx, site, limit any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListActive", reflect.TypeOf((*MockListingStore)(nil).ListActive), ctx, site, limit)
}

// ListCandidates mocks base method.
func (m *MockListingStore) ListCandidates(ctx context.Context, since time.Time, site string) ([]domain.Candidate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListCandidates", ctx, since, site)
	ret0, _ := ret[0].([]domain.Candidate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListCandidates indicates an expected call of ListCandidates.
func (mr *MockListingStoreMockRecorder) ListCandidates(ctx, since, site any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListCandidates", reflect.TypeOf((*MockListingStore)(nil).ListCandidates), ctx, since, site)
}

// MarkRemoved mocks base method.
func (m *MockListingStore) MarkRemoved(ctx context.Context, url string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MarkRemoved", ctx, url)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// MarkRemoved indicates an expected call of MarkRemoved.
func (mr *MockListingStoreMockRecorder) MarkRemoved(ctx, url any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MarkRemoved", reflect.TypeOf((*MockListingStore)(nil).MarkRemoved), ctx, url)
}

// Upsert mocks base method.
func (m *MockListingStore) Upsert(ctx context.Context, listing *domain.Listing) (uuid.UUID, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Upsert", ctx, listing)
	ret0, _ := ret[0].(uuid.UUID)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Upsert indicates an expected call of Upsert.
func (mr *MockListingStoreMockRecorder) Upsert(ctx, listing any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Upsert", reflect.TypeOf((*MockListingStore)(nil).Upsert), ctx, listing)
}

// MockPropertyStore is a mock of PropertyStore interface.
type MockPropertyStore struct {
	ctrl     *gomock.Controller
	recorder *MockPropertyStoreMockRecorder
	isgomock struct{}
}

// MockPropertyStoreMockRecorder is the mock recorder for MockPropertyStore.
type MockPropertyStoreMockRecorder struct {
	mock *MockPropertyStore
}

// NewMockPropertyStore creates a new mock instance.
func NewMockPropertyStore(ctrl *gomock.Controller) *MockPropertyStore {
	mock := &MockPropertyStore{ctrl: ctrl}
	mock.recorder = &MockPropertyStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockPropertyStore) EXPECT() *MockPropertyStoreMockRecorder {
	return m.recorder
}

// ApplyChanges mocks base method.
func (m *MockPropertyStore) ApplyChanges(ctx context.Context, listingID uuid.UUID, changes []domain.ListingChange) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ApplyChanges", ctx, listingID, changes)
	ret0, _ := ret[0].(error)
	return ret0
}

// ApplyChanges indicates an expected call of ApplyChanges.
func (mr *MockPropertyStoreMockRecorder) ApplyChanges(ctx, listingID, changes any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ApplyChanges", reflect.TypeOf((*MockPropertyStore)(nil).ApplyChanges), ctx, listingID, changes)
}

// Exists mocks base method.
func (m *MockPropertyStore) Exists(ctx context.Context, listingID uuid.UUID) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Exists", ctx, listingID)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Exists indicates an expected call of Exists.
func (mr *MockPropertyStoreMockRecorder) Exists(ctx, listingID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Exists", reflect.TypeOf((*MockPropertyStore)(nil).Exists), ctx, listingID)
}

// Insert mocks base method.
func (m *MockPropertyStore) Insert(ctx context.Context, property *domain.Property) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Insert", ctx, property)
	ret0, _ := ret[0].(error)
	return ret0
}

// Insert indicates an expected call of Insert.
func (mr *MockPropertyStoreMockRecorder) Insert(ctx, property any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Insert", reflect.TypeOf((*MockPropertyStore)(nil).Insert), ctx, property)
}

// MockRawDataStore is a mock of RawDataStore interface.
type MockRawDataStore struct {
	ctrl     *gomock.Controller
	recorder *MockRawDataStoreMockRecorder
	isgomock struct{}
}

// MockRawDataStoreMockRecorder is the mock recorder for MockRawDataStore.
type MockRawDataStoreMockRecorder struct {
	mock *MockRawDataStore
}

// NewMockRawDataStore creates a new mock instance.
func NewMockRawDataStore(ctrl *gomock.Controller) *MockRawDataStore {
	mock := &MockRawDataStore{ctrl: ctrl}
	mock.recorder = &MockRawDataStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRawDataStore) EXPECT() *MockRawDataStoreMockRecorder {
	return m.recorder
}

// Insert mocks base method.
func (m *MockRawDataStore) Insert(ctx context.Context, raw *domain.RawData) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Insert", ctx, raw)
	ret0, _ := ret[0].(error)
	return ret0
}

// Insert indicates an expected call of Insert.
func (mr *MockRawDataStoreMockRecorder) Insert(ctx, raw any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Insert", reflect.TypeOf((*MockRawDataStore)(nil).Insert), ctx, raw)
}

// MockImageStore is a mock of ImageStore interface.
type MockImageStore struct {
	ctrl     *gomock.Controller
	recorder *MockImageStoreMockRecorder
	isgomock struct{}
}

// MockImageStoreMockRecorder is the mock recorder for MockImageStore.
type MockImageStoreMockRecorder struct {
	mock *MockImageStore
}

// NewMockImageStore creates a new mock instance.
func NewMockImageStore(ctrl *gomock.Controller) *MockImageStore {
	mock := &MockImageStore{ctrl: ctrl}
	mock.recorder = &MockImageStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockImageStore) EXPECT() *MockImageStoreMockRecorder {
	return m.recorder
}

// UpsertBatch mocks base method.
func (m *MockImageStore) UpsertBatch(ctx context.Context, listingID uuid.UUID, urls []string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpsertBatch", ctx, listingID, urls)
	ret0, _ := ret[0].(error)
	return ret0
}

// UpsertBatch indicates an expected call of UpsertBatch.
func (mr *MockImageStoreMockRecorder) UpsertBatch(ctx, listingID, urls any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpsertBatch", reflect.TypeOf((*MockImageStore)(nil).UpsertBatch), ctx, listingID, urls)
}

// MockChangeStore is a mock of ChangeStore interface.
type MockChangeStore struct {
	ctrl     *gomock.Controller
	recorder *MockChangeStoreMockRecorder
	isgomock struct{}
}

// MockChangeStoreMockRecorder is the mock recorder for MockChangeStore.
type MockChangeStoreMockRecorder struct {
	mock *MockChangeStore
}

// NewMockChangeStore creates a new mock instance.
func NewMockChangeStore(ctrl *gomock.Controller) *MockChangeStore {
	mock := &MockChangeStore{ctrl: ctrl}
	mock.recorder = &MockChangeStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockChangeStore) EXPECT() *MockChangeStoreMockRecorder {
	return m.recorder
}

// InsertBatch mocks base method.
func (m *MockChangeStore) InsertBatch(ctx context.Context, changes []domain.ListingChange) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "InsertBatch", ctx, changes)
	ret0, _ := ret[0].(error)
	return ret0
}

// InsertBatch indicates an expected call of InsertBatch.
func (mr *MockChangeStoreMockRecorder) InsertBatch(ctx, changes any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "InsertBatch", reflect.TypeOf((*MockChangeStore)(nil).InsertBatch), ctx, changes)
}

// ListByListing mocks base method.
func (m *MockChangeStore) ListByListing(ctx context.Context, listingID uuid.UUID) ([]domain.ListingChange, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByListing", ctx, listingID)
	ret0, _ := ret[0].([]domain.ListingChange)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByListing indicates an expected call of ListByListing.
func (mr *MockChangeStoreMockRecorder) ListByListing(ctx, listingID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByListing", reflect.TypeOf((*MockChangeStore)(nil).ListByListing), ctx, listingID)
}

// MockErrorStore is a mock of ErrorStore interface.
type MockErrorStore struct {
	ctrl     *gomock.Controller
	recorder *MockErrorStoreMockRecorder
	isgomock struct{}
}

// MockErrorStoreMockRecorder is the mock recorder for MockErrorStore.
type MockErrorStoreMockRecorder struct {
	mock *MockErrorStore
}

// NewMockErrorStore creates a new mock instance.
func NewMockErrorStore(ctrl *gomock.Controller) *MockErrorStore {
	mock := &MockErrorStore{ctrl: ctrl}
	mock.recorder = &MockErrorStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockErrorStore) EXPECT() *MockErrorStoreMockRecorder {
	return m.recorder
}

// ClearURL mocks base method.
func (m *MockErrorStore) ClearURL(ctx context.Context, url string) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ClearURL", ctx, url)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ClearURL indicates an expected call of ClearURL.
func (mr *MockErrorStoreMockRecorder) ClearURL(ctx, url any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ClearURL", reflect.TypeOf((*MockErrorStore)(nil).ClearURL), ctx, url)
}

// Record mocks base method.
func (m *MockErrorStore) Record(ctx context.Context, rec domain.ErrorRecord) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Record", ctx, rec)
	ret0, _ := ret[0].(error)
	return ret0
}

// Record indicates an expected call of Record.
func (mr *MockErrorStoreMockRecorder) Record(ctx, rec any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Record", reflect.TypeOf((*MockErrorStore)(nil).Record), ctx, rec)
}

// MockReportStore is a mock of ReportStore interface.
type MockReportStore struct {
	ctrl     *gomock.Controller
	recorder *MockReportStoreMockRecorder
	isgomock struct{}
}

// MockReportStoreMockRecorder is the mock recorder for MockReportStore.
type MockReportStoreMockRecorder struct {
	mock *MockReportStore
}

// NewMockReportStore creates a new mock instance.
func NewMockReportStore(ctrl *gomock.Controller) *MockReportStore {
	mock := &MockReportStore{ctrl: ctrl}
	mock.recorder = &MockReportStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockReportStore) EXPECT() *MockReportStoreMockRecorder {
	return m.recorder
}

// Create mocks base method.
func (m *MockReportStore) Create(ctx context.Context, report *domain.Report) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, report)
	ret0, _ := ret[0].(error)
	return ret0
}

// Create indicates an expected call of Create.
func (mr *MockReportStoreMockRecorder) Create(ctx, report any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockReportStore)(nil).Create), ctx, report)
}

// Finish mocks base method.
func (m *MockReportStore) Finish(ctx context.Context, report *domain.Report) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Finish", ctx, report)
	ret0, _ := ret[0].(error)
	return ret0
}

// Finish indicates an expected call of Finish.
func (mr *MockReportStoreMockRecorder) Finish(ctx, report any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Finish", reflect.TypeOf((*MockReportStore)(nil).Finish), ctx, report)
}

// MockUserStore is a mock of UserStore interface.
type MockUserStore struct {
	ctrl     *gomock.Controller
	recorder *MockUserStoreMockRecorder
	isgomock struct{}
}

// MockUserStoreMockRecorder is the mock recorder for MockUserStore.
type MockUserStoreMockRecorder struct {
	mock *MockUserStore
}

// NewMockUserStore creates a new mock instance.
func NewMockUserStore(ctrl *gomock.Controller) *MockUserStore {
	mock := &MockUserStore{ctrl: ctrl}
	mock.recorder = &MockUserStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockUserStore) EXPECT() *MockUserStoreMockRecorder {
	return m.recorder
}

// GetByChatID mocks base method.
func (m *MockUserStore) GetByChatID(ctx context.Context, chatID string) (*domain.User, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByChatID", ctx, chatID)
	ret0, _ := ret[0].(*domain.User)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByChatID indicates an expected call of GetByChatID.
func (mr *MockUserStoreMockRecorder) GetByChatID(ctx, chatID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByChatID", reflect.TypeOf((*MockUserStore)(nil).GetByChatID), ctx, chatID)
}

// GetPreference mocks base method.
func (m *MockUserStore) GetPreference(ctx context.Context, userID uuid.UUID) (*domain.UserPreference, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetPreference", ctx, userID)
	ret0, _ := ret[0].(*domain.UserPreference)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetPreference indicates an expected call of GetPreference.
func (mr *MockUserStoreMockRecorder) GetPreference(ctx, userID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetPreference", reflect.TypeOf((*MockUserStore)(nil).GetPreference), ctx, userID)
}

// ListSubscribers mocks base method.
func (m *MockUserStore) ListSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListSubscribers", ctx)
	ret0, _ := ret[0].([]domain.Subscriber)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListSubscribers indicates an expected call of ListSubscribers.
func (mr *MockUserStoreMockRecorder) ListSubscribers(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListSubscribers", reflect.TypeOf((*MockUserStore)(nil).ListSubscribers), ctx)
}

// SavePreference mocks base method.
func (m *MockUserStore) SavePreference(ctx context.Context, pref *domain.UserPreference, keepExisting bool) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SavePreference", ctx, pref, keepExisting)
	ret0, _ := ret[0].(error)
	return ret0
}

// SavePreference indicates an expected call of SavePreference.
func (mr *MockUserStoreMockRecorder) SavePreference(ctx, pref, keepExisting any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SavePreference", reflect.TypeOf((*MockUserStore)(nil).SavePreference), ctx, pref, keepExisting)
}

// Upsert mocks base method.
func (m *MockUserStore) Upsert(ctx context.Context, user *domain.User) (uuid.UUID, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Upsert", ctx, user)
	ret0, _ := ret[0].(uuid.UUID)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// Upsert indicates an expected call of Upsert.
func (mr *MockUserStoreMockRecorder) Upsert(ctx, user any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Upsert", reflect.TypeOf((*MockUserStore)(nil).Upsert), ctx, user)
}

// MockQueueStore is a mock of QueueStore interface.
type MockQueueStore struct {
	ctrl     *gomock.Controller
	recorder *MockQueueStoreMockRecorder
	isgomock struct{}
}

// MockQueueStoreMockRecorder is the mock recorder for MockQueueStore.
type MockQueueStoreMockRecorder struct {
	mock *MockQueueStore
}

// NewMockQueueStore creates a new mock instance.
func NewMockQueueStore(ctrl *gomock.Controller) *MockQueueStore {
	mock := &MockQueueStore{ctrl: ctrl}
	mock.recorder = &MockQueueStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockQueueStore) EXPECT() *MockQueueStoreMockRecorder {
	return m.recorder
}

// Insert mocks base method.
func (m *MockQueueStore) Insert(ctx context.Context, entry *domain.QueueEntry) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Insert", ctx, entry)
	ret0, _ := ret[0].(error)
	return ret0
}

// Insert indicates an expected call of Insert.
func (mr *MockQueueStoreMockRecorder) Insert(ctx, entry any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Insert", reflect.TypeOf((*MockQueueStore)(nil).Insert), ctx, entry)
}

// ListPending mocks base method.
func (m *MockQueueStore) ListPending(ctx context.Context, limit int) ([]domain.PendingNotification, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListPending", ctx, limit)
	ret0, _ := ret[0].([]domain.PendingNotification)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListPending indicates an expected call of ListPending.
func (mr *MockQueueStoreMockRecorder) ListPending(ctx, limit any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListPending", reflect.TypeOf((*MockQueueStore)(nil).ListPending), ctx, limit)
}

// MarkSent mocks base method.
func (m *MockQueueStore) MarkSent(ctx context.Context, entryID uuid.UUID) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MarkSent", ctx, entryID)
	ret0, _ := ret[0].(error)
	return ret0
}

// MarkSent indicates an expected call of MarkSent.
func (mr *MockQueueStoreMockRecorder) MarkSent(ctx, entryID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MarkSent", reflect.TypeOf((*MockQueueStore)(nil).MarkSent), ctx, entryID)
}

// QueuedListingIDs mocks base method.
func (m *MockQueueStore) QueuedListingIDs(ctx context.Context, userID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "QueuedListingIDs", ctx, userID, listingIDs)
	ret0, _ := ret[0].(map[uuid.UUID]bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// QueuedListingIDs indicates an expected call of QueuedListingIDs.
func (mr *MockQueueStoreMockRecorder) QueuedListingIDs(ctx, userID, listingIDs any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "QueuedListingIDs", reflect.TypeOf((*MockQueueStore)(nil).QueuedListingIDs), ctx, userID, listingIDs)
}

// MockSource is a mock of Source interface.
type MockSource struct {
	ctrl     *gomock.Controller
	recorder *MockSourceMockRecorder
	isgomock struct{}
}

// MockSourceMockRecorder is the mock recorder for MockSource.
type MockSourceMockRecorder struct {
	mock *MockSource
}

// NewMockSource creates a new mock instance.
func NewMockSource(ctrl *gomock.Controller) *MockSource {
	mock := &MockSource{ctrl: ctrl}
	mock.recorder = &MockSourceMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSource) EXPECT() *MockSourceMockRecorder {
	return m.recorder
}

// Fetch mocks base method.
func (m *MockSource) Fetch(ctx context.Context, maxPages int) (*domain.Batch, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Fetch", ctx, maxPages)
	ret0, _ := ret[0].(*domain.Batch)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Fetch indicates an expected call of Fetch.
func (mr *MockSourceMockRecorder) Fetch(ctx, maxPages any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Fetch", reflect.TypeOf((*MockSource)(nil).Fetch), ctx, maxPages)
}

// Name mocks base method.
func (m *MockSource) Name() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Name")
	ret0, _ := ret[0].(string)
	return ret0
}

// Name indicates an expected call of Name.
func (mr *MockSourceMockRecorder) Name() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Name", reflect.TypeOf((*MockSource)(nil).Name))
}

// MockTransactionManager is a mock of TransactionManager interface.
type MockTransactionManager struct {
	ctrl     *gomock.Controller
	recorder *MockTransactionManagerMockRecorder
	isgomock struct{}
}

// MockTransactionManagerMockRecorder is the mock recorder for MockTransactionManager.
type MockTransactionManagerMockRecorder struct {
	mock *MockTransactionManager
}

// NewMockTransactionManager creates a new mock instance.
func NewMockTransactionManager(ctrl *gomock.Controller) *MockTransactionManager {
	mock := &MockTransactionManager{ctrl: ctrl}
	mock.recorder = &MockTransactionManagerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockTransactionManager) EXPECT() *MockTransactionManagerMockRecorder {
	return m.recorder
}

// WithTransaction mocks base method.
func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "WithTransaction", ctx, fn)
	ret0, _ := ret[0].(error)
	return ret0
}

// WithTransaction indicates an expected call of WithTransaction.
func (mr *MockTransactionManagerMockRecorder) WithTransaction(ctx, fn any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "WithTransaction", reflect.TypeOf((*MockTransactionManager)(nil).WithTransaction), ctx, fn)
}

// MockNotifier is a mock of Notifier interface.
type MockNotifier struct {
	ctrl     *gomock.Controller
	recorder *MockNotifierMockRecorder
	isgomock struct{}
}

// MockNotifierMockRecorder is the mock recorder for MockNotifier.
type MockNotifierMockRecorder struct {
	mock *MockNotifier
}

// NewMockNotifier creates a new mock instance.
func NewMockNotifier(ctrl *gomock.Controller) *MockNotifier {
	mock := &MockNotifier{ctrl: ctrl}
	mock.recorder = &MockNotifierMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockNotifier) EXPECT() *MockNotifierMockRecorder {
	return m.recorder
}

// Send mocks base method.
func (m *MockNotifier) Send(ctx context.Context, recipientID string, text string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Send", ctx, recipientID, text)
	ret0, _ := ret[0].(error)
	return ret0
}

// Send indicates an expected call of Send.
func (mr *MockNotifierMockRecorder) Send(ctx, recipientID, text any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Send", reflect.TypeOf((*MockNotifier)(nil).Send), ctx, recipientID, text)
}

// MockProber is a mock of Prober interface.
type MockProber struct {
	ctrl     *gomock.Controller
	recorder *MockProberMockRecorder
	isgomock struct{}
}

// MockProberMockRecorder is the mock recorder for MockProber.
type MockProberMockRecorder struct {
	mock *MockProber
}

// NewMockProber creates a new mock instance.
func NewMockProber(ctrl *gomock.Controller) *MockProber {
	mock := &MockProber{ctrl: ctrl}
	mock.recorder = &MockProberMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockProber) EXPECT() *MockProberMockRecorder {
	return m.recorder
}

// Status mocks base method.
func (m *MockProber) Status(ctx context.Context, url string) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Status", ctx, url)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Status indicates an expected call of Status.
func (mr *MockProberMockRecorder) Status(ctx, url any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Status", reflect.TypeOf((*MockProber)(nil).Status), ctx, url)
}
