package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/fundlens/internal/models"
)

type mockBuilder struct {
	mu        sync.Mutex
	collected []string
	collectFn func(ctx context.Context, fund models.FundSpec) (*models.CollectedData, error)
}

func (m *mockBuilder) Collect(ctx context.Context, fund models.FundSpec, reportType models.ReportType, date time.Time) (*models.CollectedData, error) {
	m.mu.Lock()
	m.collected = append(m.collected, fund.Code)
	m.mu.Unlock()
	if m.collectFn != nil {
		return m.collectFn(ctx, fund)
	}
	return &models.CollectedData{Fund: fund, Type: reportType, Date: date}, nil
}

func (m *mockBuilder) Assemble(data *models.CollectedData) *models.ReportContext {
	return &models.ReportContext{
		Fund:     data.Fund,
		Type:     data.Type,
		Date:     data.Date,
		Budget:   1000,
		Included: []string{models.SectionMarket},
		Sections: []models.ContextSection{{
			Name:      models.SectionMarket,
			Title:     "市场概况",
			Text:      "上证指数 +0.50%",
			Mandatory: true,
		}},
	}
}

type mockLLM struct {
	mu      sync.Mutex
	prompts []string
	fn      func(ctx context.Context, rc *models.ReportContext) (string, error)
}

func (m *mockLLM) Generate(ctx context.Context, systemPrompt string, rc *models.ReportContext) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, systemPrompt)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, rc)
	}
	return "## 观点\n整体偏暖。\n\n情绪评分: 2", nil
}

type mockWriter struct {
	mu      sync.Mutex
	written []*models.ReportResult
	err     error
}

func (m *mockWriter) Write(result *models.ReportResult, rc *models.ReportContext) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, result)
	return "reports/" + result.FundCode + ".md", nil
}

func (m *mockWriter) codes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.written {
		out = append(out, r.FundCode)
	}
	return out
}

type mockDelivery struct {
	delivered []string
	err       error
}

func (m *mockDelivery) Deliver(ctx context.Context, result *models.ReportResult, markdown string) error {
	m.delivered = append(m.delivered, result.FundCode)
	return m.err
}
