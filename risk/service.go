package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
)

// Service analyzes scans against what a user already takes
type Service struct {
	engine  *Engine
	users   interfaces.UserStore
	timeout time.Duration
}

// NewService creates a service. A timeout of zero leaves the caller's deadline untouched.
func NewService(engine *Engine, users interfaces.UserStore, timeout time.Duration) *Service {
	return &Service{engine: engine, users: users, timeout: timeout}
}

// Engine returns the underlying engine
func (s *Service) Engine() *Engine {
	return s.engine
}

// Analyze runs the engine under the service timeout
func (s *Service) Analyze(ctx context.Context, req Request) (*entities.AnalysisReport, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.engine.Analyze(ctx, req)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

// AnalyzeForUser loads the user's baseline codes, profile and registered doses, then
// analyzes the scanned ingredients against them
func (s *Service) AnalyzeForUser(ctx context.Context, userID string, scanned []entities.ExtractedIngredient) (*entities.AnalysisReport, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	baseline, err := s.users.FindUserBaselineIngredientCodes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load products of %s: %w", userID, err)
	}
	profile, err := s.users.FindUserHealthProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile of %s: %w", userID, err)
	}
	doses, err := s.users.FindUserIngredientDoses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load doses of %s: %w", userID, err)
	}

	return s.engine.Analyze(ctx, Request{
		Scanned:       scanned,
		BaselineCodes: baseline,
		Profile:       profile,
		Doses:         doses,
	})
}
