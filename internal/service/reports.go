package service

import (
	"context"
	"encoding/json"
	"time"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
)

const (
	dashboardCacheKey = "dashboard"
	dashboardCacheTTL = 30 * time.Second
	summaryCacheKey   = "reports:summary"
	summaryCacheTTL   = time.Minute
)

// DailyProfitLoss reports a single calendar day (UTC).
func (s *Service) DailyProfitLoss(ctx context.Context, date time.Time) (domain.ProfitLossSummary, error) {
	if _, err := s.requirePermission(ctx, domain.PermViewReports); err != nil {
		return domain.ProfitLossSummary{}, err
	}
	start := date.UTC().Truncate(24 * time.Hour)
	return s.profitLossBucket(ctx, start, start.AddDate(0, 0, 1), start.Format("2006-01-02"))
}

// MonthlyProfitLoss reports one calendar month.
func (s *Service) MonthlyProfitLoss(ctx context.Context, year int, month time.Month) (domain.ProfitLossSummary, error) {
	if _, err := s.requirePermission(ctx, domain.PermViewReports); err != nil {
		return domain.ProfitLossSummary{}, err
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return s.profitLossBucket(ctx, start, start.AddDate(0, 1, 0), start.Format("2006-01"))
}

// YearlyProfitLoss reports one calendar year.
func (s *Service) YearlyProfitLoss(ctx context.Context, year int) (domain.ProfitLossSummary, error) {
	if _, err := s.requirePermission(ctx, domain.PermViewReports); err != nil {
		return domain.ProfitLossSummary{}, err
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return s.profitLossBucket(ctx, start, start.AddDate(1, 0, 0), start.Format("2006"))
}

// DailyTrend returns the last `days` calendar days ascending, today last.
// Empty days appear with zero totals.
func (s *Service) DailyTrend(ctx context.Context, days int) ([]domain.ProfitLossSummary, error) {
	if _, err := s.requirePermission(ctx, domain.PermViewReports); err != nil {
		return nil, err
	}
	if days < 1 || days > 90 {
		days = 30
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	out := make([]domain.ProfitLossSummary, 0, days)
	for i := days - 1; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		bucket, err := s.profitLossBucket(ctx, start, start.AddDate(0, 0, 1), start.Format("2006-01-02"))
		if err != nil {
			return nil, err
		}
		out = append(out, bucket)
	}
	return out, nil
}

// MonthlyTrend returns the last `months` calendar months ascending.
func (s *Service) MonthlyTrend(ctx context.Context, months int) ([]domain.ProfitLossSummary, error) {
	if _, err := s.requirePermission(ctx, domain.PermViewReports); err != nil {
		return nil, err
	}
	if months < 1 || months > 36 {
		months = 12
	}
	now := time.Now().UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.ProfitLossSummary, 0, months)
	for i := months - 1; i >= 0; i-- {
		start := current.AddDate(0, -i, 0)
		bucket, err := s.profitLossBucket(ctx, start, start.AddDate(0, 1, 0), start.Format("2006-01"))
		if err != nil {
			return nil, err
		}
		out = append(out, bucket)
	}
	return out, nil
}

// YearlyTrend returns the last `years` calendar years ascending.
func (s *Service) YearlyTrend(ctx context.Context, years int) ([]domain.ProfitLossSummary, error) {
	if _, err := s.requirePermission(ctx, domain.PermViewReports); err != nil {
		return nil, err
	}
	if years < 1 || years > 10 {
		years = 5
	}
	current := time.Date(time.Now().UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.ProfitLossSummary, 0, years)
	for i := years - 1; i >= 0; i-- {
		start := current.AddDate(-i, 0, 0)
		bucket, err := s.profitLossBucket(ctx, start, start.AddDate(1, 0, 0), start.Format("2006"))
		if err != nil {
			return nil, err
		}
		out = append(out, bucket)
	}
	return out, nil
}

// OverallSummary covers all non-cancelled orders ever recorded. The result
// is cached briefly since it scans the full order history.
func (s *Service) OverallSummary(ctx context.Context) (domain.ProfitLossSummary, error) {
	if _, err := s.requirePermission(ctx, domain.PermViewReports); err != nil {
		return domain.ProfitLossSummary{}, err
	}

	if raw, ok, err := s.cache.Get(ctx, summaryCacheKey); err == nil && ok {
		var cached domain.ProfitLossSummary
		if json.Unmarshal(raw, &cached) == nil {
			return cached, nil
		}
	}

	summary, err := s.repo.ProfitLoss(ctx, time.Time{}, time.Now().UTC().Add(time.Minute))
	if err != nil {
		return domain.ProfitLossSummary{}, err
	}
	summary.Label = "overall"

	if raw, err := json.Marshal(summary); err == nil {
		if err := s.cache.Set(ctx, summaryCacheKey, raw, summaryCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache overall summary")
		}
	}
	return summary, nil
}

// Dashboard assembles the landing-page stats. The payload is cached for a
// short window to keep frequent polling cheap.
func (s *Service) Dashboard(ctx context.Context) (domain.DashboardPayload, error) {
	if _, err := s.requirePermission(ctx, domain.PermViewReports); err != nil {
		return domain.DashboardPayload{}, err
	}

	if raw, ok, err := s.cache.Get(ctx, dashboardCacheKey); err == nil && ok {
		var cached domain.DashboardPayload
		if json.Unmarshal(raw, &cached) == nil {
			return cached, nil
		}
	}

	todayStart := time.Now().UTC().Truncate(24 * time.Hour)
	todayEnd := todayStart.AddDate(0, 0, 1)

	daily, err := s.repo.ProfitLoss(ctx, todayStart, todayEnd)
	if err != nil {
		return domain.DashboardPayload{}, err
	}
	daily.Label = todayStart.Format("2006-01-02")

	pendingCount, err := s.repo.CountOrders(ctx, store.OrderFilter{Status: domain.OrderPending})
	if err != nil {
		return domain.DashboardPayload{}, err
	}
	pending, _, err := s.repo.ListOrders(ctx, store.OrderFilter{Status: domain.OrderPending, Page: 1, Limit: 5})
	if err != nil {
		return domain.DashboardPayload{}, err
	}
	recent, _, err := s.repo.ListOrders(ctx, store.OrderFilter{Page: 1, Limit: 10})
	if err != nil {
		return domain.DashboardPayload{}, err
	}
	lowStock, err := s.repo.LowStockProducts(ctx, s.lowStockThreshold)
	if err != nil {
		return domain.DashboardPayload{}, err
	}

	payload := domain.DashboardPayload{
		TodaySalesCents:    daily.TotalSalesCents,
		TodayOrdersCount:   daily.OrderCount,
		PendingOrdersCount: pendingCount,
		PendingOrders:      pending,
		LowStockProducts:   lowStock,
		DailyProfitLoss:    daily,
		RecentOrders:       recent,
	}

	if raw, err := json.Marshal(payload); err == nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, raw, dashboardCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache dashboard")
		}
	}
	return payload, nil
}

func (s *Service) profitLossBucket(ctx context.Context, from, to time.Time, label string) (domain.ProfitLossSummary, error) {
	summary, err := s.repo.ProfitLoss(ctx, from, to)
	if err != nil {
		return domain.ProfitLossSummary{}, err
	}
	summary.Label = label
	return summary, nil
}
