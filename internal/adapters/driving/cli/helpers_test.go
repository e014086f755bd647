package cli

import (
	"context"
	"fmt"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
)

// stubRAGService is a programmable driving.RAGService for command tests.
type stubRAGService struct {
	queryResult *domain.QueryResult
	queryErr    error
	report      domain.IngestReport
	spaceErr    error
	status      domain.Status
	resetStats  domain.StoreStats
	resetErr    error

	lastQuestion string
	lastTopK     int
	lastPageIDs  []string
	lastSpace    string
	lastLimit    int
}

func (s *stubRAGService) IngestPage(_ context.Context, pageID string) domain.PageResult {
	for _, p := range s.report.Pages {
		if p.PageID == pageID {
			return p
		}
	}
	return domain.PageResult{PageID: pageID, Err: fmt.Errorf("unknown page")}
}

func (s *stubRAGService) IngestPages(_ context.Context, pageIDs []string) domain.IngestReport {
	s.lastPageIDs = pageIDs
	return s.report
}

func (s *stubRAGService) IngestSpace(_ context.Context, spaceKey string, limit int) (domain.IngestReport, error) {
	s.lastSpace = spaceKey
	s.lastLimit = limit
	if s.spaceErr != nil {
		return domain.IngestReport{}, s.spaceErr
	}
	return s.report, nil
}

func (s *stubRAGService) Query(_ context.Context, question string, topK int) (*domain.QueryResult, error) {
	s.lastQuestion = question
	s.lastTopK = topK
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.queryResult, nil
}

func (s *stubRAGService) Status(_ context.Context) domain.Status {
	return s.status
}

func (s *stubRAGService) Reset(_ context.Context) (domain.StoreStats, error) {
	if s.resetErr != nil {
		return domain.StoreStats{}, s.resetErr
	}
	return s.resetStats, nil
}

// setupTestServices installs a stub service and returns it with a cleanup
// that restores the package state.
func setupTestServices() (*stubRAGService, func()) {
	stub := &stubRAGService{
		queryResult: &domain.QueryResult{Answer: "stub answer"},
	}
	ragService = stub
	return stub, func() {
		ragService = nil
		rootCmd.SetArgs(nil)
	}
}
