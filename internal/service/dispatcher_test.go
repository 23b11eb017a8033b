package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"estate_tracker/internal/config"
	"estate_tracker/internal/domain"
	"estate_tracker/internal/service/mocks"
	"estate_tracker/testdata/utils"
)

type DispatcherTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	queue    *mocks.MockQueueStore
	notifier *mocks.MockNotifier

	dispatcher *Dispatcher
}

func (s *DispatcherTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.queue = mocks.NewMockQueueStore(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.dispatcher = NewDispatcher(s.queue, s.notifier, logger, config.DispatchConfig{BatchSize: 20})
}

func (s *DispatcherTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func pending(c domain.Candidate) domain.PendingNotification {
	return domain.PendingNotification{EntryID: uuid.New(), ChatID: "42", Listing: c}
}

func (s *DispatcherTestSuite) TestDispatch_SendsAndMarks() {
	ctx := context.Background()
	p := pending(candidate("Beograd", 100000, 60, 3))

	s.queue.EXPECT().ListPending(gomock.Any(), 20).Return([]domain.PendingNotification{p}, nil)
	s.notifier.EXPECT().Send(gomock.Any(), "42", gomock.Any()).DoAndReturn(
		func(ctx context.Context, chatID, text string) error {
			s.Contains(text, p.Listing.URL)
			return nil
		},
	)
	s.queue.EXPECT().MarkSent(gomock.Any(), p.EntryID).Return(nil)

	stats, err := s.dispatcher.Dispatch(ctx)

	s.Require().NoError(err)
	s.Equal(1, stats.Sent)
}

func (s *DispatcherTestSuite) TestDispatch_SkipsIncompleteListing() {
	ctx := context.Background()
	noRooms := candidate("Beograd", 100000, 60, 3)
	noRooms.Rooms = nil
	removed := candidate("Beograd", 100000, 60, 3)
	removed.Status = string(domain.StatusRemoved)

	s.queue.EXPECT().ListPending(gomock.Any(), 20).
		Return([]domain.PendingNotification{pending(noRooms), pending(removed)}, nil)

	stats, err := s.dispatcher.Dispatch(ctx)

	s.Require().NoError(err)
	s.Equal(2, stats.Skipped)
	s.Equal(0, stats.Sent)
}

func (s *DispatcherTestSuite) TestDispatch_FailedSendStaysUnsent() {
	ctx := context.Background()
	failing := pending(candidate("Beograd", 100000, 60, 3))
	ok := pending(candidate("Beograd", 110000, 65, 3))

	s.queue.EXPECT().ListPending(gomock.Any(), 20).Return([]domain.PendingNotification{failing, ok}, nil)
	gomock.InOrder(
		s.notifier.EXPECT().Send(gomock.Any(), "42", gomock.Any()).Return(errors.New("not confirmed")),
		s.notifier.EXPECT().Send(gomock.Any(), "42", gomock.Any()).Return(nil),
	)
	s.queue.EXPECT().MarkSent(gomock.Any(), ok.EntryID).Return(nil)

	stats, err := s.dispatcher.Dispatch(ctx)

	s.Require().NoError(err)
	s.Equal(1, stats.Failed)
	s.Equal(1, stats.Sent)
}

func (s *DispatcherTestSuite) TestDispatch_ListFails() {
	s.queue.EXPECT().ListPending(gomock.Any(), 20).Return(nil, errors.New("db down"))

	_, err := s.dispatcher.Dispatch(context.Background())

	s.Require().Error(err)
}

func TestFormatNotification(t *testing.T) {
	c := domain.Candidate{
		URL:           "https://www.nekretnine.test/stan/1",
		City:          utils.Ptr("Beograd"),
		Municipality:  utils.Ptr("Vračar"),
		MicroLocation: utils.Ptr("Crveni krst"),
		Price:         1234567,
		SizeM2:        utils.Ptr(1054.5),
		Rooms:         utils.Ptr(2.5),
		FirstSeenAt:   time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
	}

	want := "🏢 City: Beograd\n" +
		"📍 Location: Beograd - Vračar - Crveni krst\n" +
		"💰 Price: € 1,234,567\n" +
		"📏 Size: 1,054.50 m²\n" +
		"🏠 Rooms: 2.50\n" +
		"📅 Publication date: 2024-05-02\n" +
		"🔗 Link: https://www.nekretnine.test/stan/1"

	assert.Equal(t, want, FormatNotification(c))
}

func TestFormatNotification_MissingLocationParts(t *testing.T) {
	c := domain.Candidate{
		URL:         "https://www.nekretnine.test/stan/2",
		City:        utils.Ptr("Novi Sad"),
		Price:       90000,
		SizeM2:      utils.Ptr(48.0),
		Rooms:       utils.Ptr(2.0),
		FirstSeenAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}

	assert.Contains(t, FormatNotification(c), "📍 Location: Novi Sad\n")
}
