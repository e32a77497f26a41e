package corpus

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// PowerSchedule selects the formula weighting how many mutations an entry
// receives per visit.
type PowerSchedule uint8

const (
	ScheduleFast PowerSchedule = iota
	ScheduleExplore
	ScheduleExploit
	ScheduleLin
	ScheduleQuad
	ScheduleCoe
)

var scheduleNames = map[string]PowerSchedule{
	"fast":    ScheduleFast,
	"explore": ScheduleExplore,
	"exploit": ScheduleExploit,
	"lin":     ScheduleLin,
	"quad":    ScheduleQuad,
	"coe":     ScheduleCoe,
}

func ParsePowerSchedule(name string) (PowerSchedule, error) {
	schedule, ok := scheduleNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown power schedule %q", name)
	}
	return schedule, nil
}

func (p PowerSchedule) String() string {
	for name, schedule := range scheduleNames {
		if schedule == p {
			return name
		}
	}
	return "fast"
}

// allSchedules is the cycling order when schedule cycling is enabled.
var allSchedules = []PowerSchedule{
	ScheduleExplore, ScheduleFast, ScheduleCoe, ScheduleLin, ScheduleQuad, ScheduleExploit,
}

// Scheduler picks corpus entries by weight and computes per-entry power
// scores. It minimizes over length and execution time: short, fast inputs
// are favored.
type Scheduler struct {
	schedule PowerSchedule
	cycling  bool
	visits   uint64
}

func NewScheduler(schedule PowerSchedule, cycling bool) *Scheduler {
	return &Scheduler{schedule: schedule, cycling: cycling}
}

// cyclePeriod is how many selections pass before a cycling scheduler moves
// to the next power schedule.
const cyclePeriod = 100_000

func (s *Scheduler) currentSchedule() PowerSchedule {
	if !s.cycling {
		return s.schedule
	}
	idx := int(s.visits/cyclePeriod) % len(allSchedules)
	return allSchedules[idx]
}

// Select picks the next entry: weighted by inverse length × inverse
// average execution time, so small fast entries are fuzzed more often.
func (s *Scheduler) Select(rng *rand.Rand, corpus *Corpus) *Entry {
	s.visits++
	entries := corpus.Entries()
	if len(entries) == 0 {
		return nil
	}
	weights := make([]float64, len(entries))
	var total float64
	for i, entry := range entries {
		weights[i] = s.weight(entry)
		total += weights[i]
	}
	target := rng.Float64() * total
	var acc float64
	for i, w := range weights {
		acc += w
		if target < acc {
			entries[i].Selected++
			return entries[i]
		}
	}
	last := entries[len(entries)-1]
	last.Selected++
	return last
}

func (s *Scheduler) weight(entry *Entry) float64 {
	length := float64(entry.Input.Len()) + 1
	execTime := float64(entry.AvgExecTime) / float64(time.Millisecond)
	if execTime <= 0 {
		execTime = 1
	}
	weight := 1.0 / (length * execTime)
	if entry.Performance > 0 {
		weight *= entry.Performance
	}
	return weight
}

// PowerScore returns how many havoc mutations the entry receives this
// visit, per the active schedule.
func (s *Scheduler) PowerScore(entry *Entry) int {
	selected := float64(entry.Selected)
	var factor float64
	switch s.currentSchedule() {
	case ScheduleExplore:
		factor = 1
	case ScheduleExploit:
		factor = 4
	case ScheduleFast:
		factor = math.Min(math.Pow(2, math.Min(selected, 10)), 32) / 4
	case ScheduleLin:
		factor = math.Min(selected, 8)
	case ScheduleQuad:
		factor = math.Min(selected*selected, 16)
	case ScheduleCoe:
		if entry.Selected > 4 {
			factor = 2
		} else {
			factor = 0.5
		}
	}
	score := int(8 * factor)
	if score < 1 {
		score = 1
	}
	if score > 256 {
		score = 256
	}
	return score
}
