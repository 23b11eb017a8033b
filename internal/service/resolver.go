package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"estate_tracker/internal/domain"
	"estate_tracker/internal/normalize"
)

const unknownSellerName = "Unknown Seller"

// Resolver maps the source and seller of a scraped listing onto stored rows.
type Resolver struct {
	sources SourceStore
	sellers SellerStore
	logger  *slog.Logger

	mu            sync.Mutex
	pendingAgents map[uuid.UUID]string
}

func NewResolver(sources SourceStore, sellers SellerStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		sources:       sources,
		sellers:       sellers,
		logger:        logger.With("component", "resolver"),
		pendingAgents: make(map[uuid.UUID]string),
	}
}

// ResolveSource returns the id of the source with the given base url,
// creating it on first sight.
func (r *Resolver) ResolveSource(ctx context.Context, src domain.ScrapedSource) (uuid.UUID, error) {
	existing, err := r.sources.GetByBaseURL(ctx, src.BaseURL)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("get source: %w", err)
	}

	id, err := r.sources.Insert(ctx, &domain.Source{ID: uuid.New(), Name: src.Name, BaseURL: src.BaseURL})
	if errors.Is(err, domain.ErrConflict) {
		// Inserted concurrently by another run.
		existing, err = r.sources.GetByBaseURL(ctx, src.BaseURL)
		if err != nil {
			return uuid.Nil, fmt.Errorf("re-read source: %w", err)
		}
		return existing.ID, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert source: %w", err)
	}

	r.logger.Info("created source", "name", src.Name, "base_url", src.BaseURL)
	return id, nil
}

// ResolveSeller returns the id of the seller matching the scraped identity
// tuple, creating a seller when none matches. Agencies without an agent are
// remembered for BackfillAgents.
func (r *Resolver) ResolveSeller(ctx context.Context, s domain.ScrapedSeller) (uuid.UUID, error) {
	sourceSellerID := strings.TrimSpace(s.SourceSellerID.String())
	name := unknownSellerName
	if n := normalize.Text(s.Name); n != nil {
		name = strings.TrimSpace(*n)
	}
	sellerType := domain.SellerPerson
	if s.SellerType != nil {
		sellerType = domain.ParseSellerType(strings.TrimSpace(*s.SellerType))
	}
	registry := ""
	if s.RegistryNumber != nil {
		registry = strings.TrimSpace(*s.RegistryNumber)
	}

	existing, err := r.sellers.FindByIdentity(ctx, sourceSellerID, name, sellerType)
	switch {
	case err == nil:
		if existing.SellerType == domain.SellerAgency && existing.AgentID == nil {
			r.rememberAgent(existing.ID, registry)
		}
		return existing.ID, nil
	case !errors.Is(err, domain.ErrNotFound):
		return uuid.Nil, fmt.Errorf("find seller: %w", err)
	}

	seller := &domain.Seller{
		ID:             uuid.New(),
		SourceSellerID: sourceSellerID,
		Name:           name,
		SellerType:     sellerType,
		PrimaryPhone:   normalize.Text(s.PrimaryPhone),
		PrimaryEmail:   normalize.Text(s.PrimaryEmail),
		Website:        normalize.Text(s.Website),
	}
	id, err := r.sellers.Insert(ctx, seller)
	if errors.Is(err, domain.ErrConflict) {
		existing, err = r.sellers.FindByIdentity(ctx, sourceSellerID, name, sellerType)
		if err != nil {
			return uuid.Nil, fmt.Errorf("re-read seller: %w", err)
		}
		return existing.ID, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert seller: %w", err)
	}

	if sellerType == domain.SellerAgency {
		r.rememberAgent(id, registry)
	}
	return id, nil
}

func (r *Resolver) rememberAgent(sellerID uuid.UUID, registry string) {
	if registry == "" {
		return
	}
	r.mu.Lock()
	r.pendingAgents[sellerID] = registry
	r.mu.Unlock()
}

// BackfillAgents links remembered agency sellers to their registry record.
// Failures are logged and skipped. It returns the number of sellers linked.
func (r *Resolver) BackfillAgents(ctx context.Context) int {
	r.mu.Lock()
	pending := r.pendingAgents
	r.pendingAgents = make(map[uuid.UUID]string)
	r.mu.Unlock()

	linked := 0
	for sellerID, registry := range pending {
		ok, err := r.sellers.AttachAgent(ctx, sellerID, registry)
		if err != nil {
			r.logger.Debug("agent backfill skipped", "seller_id", sellerID, "registry_number", registry, "error", err)
			continue
		}
		if ok {
			linked++
		}
	}

	if len(pending) > 0 {
		r.logger.Info("agent backfill finished", "pending", len(pending), "linked", linked)
	}
	return linked
}
