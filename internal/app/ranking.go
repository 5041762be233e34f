package app

import (
	"sort"

	"pubquiz-ledger/internal/domain"
)

// sortEntries orders scoreboard rows by total descending. Ties are broken by
// team name ascending, then team ID ascending, so the ordering is stable
// across processes regardless of map iteration or insertion order.
func sortEntries(entries []domain.StandingEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Total != entries[j].Total {
			return entries[i].Total > entries[j].Total
		}
		if entries[i].TeamName != entries[j].TeamName {
			return entries[i].TeamName < entries[j].TeamName
		}
		return entries[i].TeamID < entries[j].TeamID
	})
}

// rankEntries assigns dense ranks to entries already sorted by total
// descending: tied totals share a rank and the next distinct total advances
// the rank by exactly one. [50,50,40,40,40,10] becomes [1,1,2,2,2,3].
func rankEntries(entries []domain.StandingEntry) {
	rank := 0
	previous := 0
	for i := range entries {
		if rank == 0 || entries[i].Total != previous {
			rank++
		}
		entries[i].Rank = rank
		previous = entries[i].Total
	}
}
