package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"soldi/internal/core"
)

// dividendShortCircuit decides whether a query is served by the net-leg
// path. Two historical triggers are preserved deliberately: the explicit
// include-dividend-related flag, and a YTD interval combined with an
// explicit dividend sub-type filter.
func dividendShortCircuit(q core.ReportQuery) bool {
	if len(q.Kinds) != 1 || q.Kinds[0] != core.KindSecurity {
		return false
	}
	if q.Filter.IncludeDividendRelated {
		return true
	}
	return q.Interval == core.IntervalYtd && q.Filter.HasSubType(core.SubTypeDividend)
}

// dividendReport computes security dividend reports from raw ledger legs
// instead of aggregates: each correlation group's dividend, fee and tax legs
// are netted into one amount anchored at the dividend leg's booking month.
// The result re-enters the shared transform pipeline.
func (s *Service) dividendReport(ctx context.Context, q core.ReportQuery) ([]core.ReportPoint, error) {
	// Analysis window: Take-1 months back through the analysis month.
	windowEnd := core.MonthStart(q.AnalysisDate)
	windowStart := windowEnd
	if q.Take > 0 {
		windowStart = windowEnd.AddDate(0, -(q.Take - 1), 0)
	}
	windowUntil := windowEnd.AddDate(0, 1, 0)

	securities, err := s.dir.OwnedEntities(ctx, q.OwnerID, core.KindSecurity)
	if err != nil {
		return nil, fmt.Errorf("load security directory: %w", err)
	}
	if len(securities) == 0 {
		return []core.ReportPoint{}, nil
	}

	postings, err := s.ledger.SecurityGroupPostings(ctx, q.OwnerID, windowStart, windowUntil)
	if err != nil {
		return nil, fmt.Errorf("read security group postings: %w", err)
	}

	groups := make(map[uuid.UUID][]core.Posting)
	for _, p := range postings {
		if !p.GroupID.Valid {
			continue
		}
		if _, owned := securities[p.SecurityID]; !owned {
			continue
		}
		groups[p.GroupID.UUID] = append(groups[p.GroupID.UUID], p)
	}

	// Net each group over its dividend/fee/tax legs. Groups whose dividend
	// leg falls outside the window never made it into groups and are
	// dropped with it.
	type monthBucket struct {
		month      time.Time
		securityID int64
	}
	nets := make(map[monthBucket]decimal.Decimal)
	var order []monthBucket
	for _, legs := range groups {
		var anchor time.Time
		var securityID int64
		hasDividend := false
		net := decimal.Zero
		for _, leg := range legs {
			switch leg.SubType {
			case core.SubTypeDividend:
				if !hasDividend || leg.BookingDate.Before(anchor) {
					anchor = leg.BookingDate
					securityID = leg.SecurityID
				}
				hasDividend = true
				net = net.Add(leg.Amount)
			case core.SubTypeFee, core.SubTypeTax:
				net = net.Add(leg.Amount)
			}
		}
		if !hasDividend {
			continue
		}
		b := monthBucket{month: core.MonthStart(anchor), securityID: securityID}
		if _, ok := nets[b]; !ok {
			order = append(order, b)
		}
		nets[b] = nets[b].Add(net)
	}

	// Entity/category allow-lists, same precedence as the aggregate path.
	filter := q.Filter.ByKind[core.KindSecurity]
	var points []core.ReportPoint
	for _, b := range order {
		info := securities[b.securityID]
		if q.IncludeCategories && len(filter.CategoryIDs) > 0 {
			if !containsID(filter.CategoryIDs, info.CategoryID) {
				continue
			}
		} else if len(filter.EntityIDs) > 0 {
			if !containsID(filter.EntityIDs, b.securityID) {
				continue
			}
		}
		p := core.ReportPoint{
			PeriodStart: b.month,
			Key:         core.EntityKey(core.KindSecurity, b.securityID),
			Name:        info.Name,
			Amount:      nets[b],
		}
		if q.IncludeCategories && info.CategoryName != "" {
			p.CategoryName = info.CategoryName
		}
		p.ParentKey = entityParent(q, core.KindSecurity, info, false)
		points = append(points, p)
	}

	if q.IncludeCategories {
		points = append(points, categoryRollups(q, points, false)...)
	}
	// No kind roll-up here: the all-history transform adds the total when
	// that interval is requested, mirroring the aggregate path.
	return finishPipeline(q, points), nil
}
