package service

import "estate_tracker/internal/service/mocks"

// The mocks are maintained by hand between mockgen runs; these fail the
// test build when an interface and its mock drift apart.
var (
	_ SourceStore        = (*mocks.MockSourceStore)(nil)
	_ SellerStore        = (*mocks.MockSellerStore)(nil)
	_ ListingStore       = (*mocks.MockListingStore)(nil)
	_ PropertyStore      = (*mocks.MockPropertyStore)(nil)
	_ RawDataStore       = (*mocks.MockRawDataStore)(nil)
	_ ImageStore         = (*mocks.MockImageStore)(nil)
	_ ChangeStore        = (*mocks.MockChangeStore)(nil)
	_ ErrorStore         = (*mocks.MockErrorStore)(nil)
	_ ReportStore        = (*mocks.MockReportStore)(nil)
	_ UserStore          = (*mocks.MockUserStore)(nil)
	_ QueueStore         = (*mocks.MockQueueStore)(nil)
	_ Source             = (*mocks.MockSource)(nil)
	_ TransactionManager = (*mocks.MockTransactionManager)(nil)
	_ Notifier           = (*mocks.MockNotifier)(nil)
	_ Prober             = (*mocks.MockProber)(nil)
)
