package ledger

import (
	"context"
	"fmt"
)

// Stats summarizes ledger contents.
type Stats struct {
	Total            int
	Lifecycle        map[Lifecycle]int
	SourceValidation map[Validation]int
	TargetValidation map[Validation]int
	// Transmission counts Active rows only.
	Transmission map[Transmission]int
	Supplemental map[Transmission]int
}

// Stats counts rows by lifecycle plus Active rows by validation and
// transmission status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Lifecycle:        map[Lifecycle]int{},
		SourceValidation: map[Validation]int{},
		TargetValidation: map[Validation]int{},
		Transmission:     map[Transmission]int{},
		Supplemental:     map[Transmission]int{},
	}

	rows, err := s.queryContext(ctx,
		`SELECT lifecycle, source_validation, target_validation, transmission, COUNT(1)
         FROM metadata_ledger
         GROUP BY lifecycle, source_validation, target_validation, transmission`)
	if err != nil {
		return Stats{}, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			lifecycle, source, target, transmission string
			count                                   int
		)
		if err := rows.Scan(&lifecycle, &source, &target, &transmission, &count); err != nil {
			return Stats{}, fmt.Errorf("scan ledger stats: %w", err)
		}
		stats.Total += count
		stats.Lifecycle[Lifecycle(lifecycle)] += count
		if Lifecycle(lifecycle) != LifecycleActive {
			continue
		}
		stats.SourceValidation[Validation(source)] += count
		stats.TargetValidation[Validation(target)] += count
		stats.Transmission[Transmission(transmission)] += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	supRows, err := s.queryContext(ctx,
		"SELECT transmission, COUNT(1) FROM supplemental_ledger WHERE lifecycle = ? GROUP BY transmission",
		LifecycleActive,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("supplemental stats: %w", err)
	}
	defer supRows.Close()
	for supRows.Next() {
		var (
			transmission string
			count        int
		)
		if err := supRows.Scan(&transmission, &count); err != nil {
			return Stats{}, fmt.Errorf("scan supplemental stats: %w", err)
		}
		stats.Supplemental[Transmission(transmission)] += count
	}
	return stats, supRows.Err()
}
