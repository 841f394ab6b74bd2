// Package verso implements an FSRS-style spaced repetition scheduling engine.
//
// verso models each card's memory state as a (stability, difficulty) pair
// and schedules the next review for the moment predicted recall probability
// drops to a configurable target retention. The engine is pure computation:
// it is handed a card state, a parameter profile, and a clock reading, and
// returns new values without touching storage.
//
// The two-phase review flow mirrors a study session: first compute the four
// hypothetical outcomes, then commit the one the learner actually chose.
//
//	s, err := verso.NewScheduler(verso.SchedulerConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	card := verso.NewCard(1)
//	cands, err := s.ScheduleCandidates(card, verso.DefaultProfile(), time.Now())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	card, entry, err := s.Commit(cands, verso.Good)
//
// Persisting the returned Card and ReviewLogEntry belongs to the caller;
// the store subpackage provides a SQLite-backed reference implementation
// of those collaborators.
package verso
