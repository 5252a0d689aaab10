package report

import (
	"sort"
	"strings"
	"time"
)

type SortMode string

const (
	SortNone    SortMode = ""
	SortHighest SortMode = "highest"
	SortLowest  SortMode = "lowest"
)

// ParseSortMode accepts "", "highest" and "lowest"; anything else is SortNone.
func ParseSortMode(v string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(v))) {
	case SortHighest:
		return SortHighest
	case SortLowest:
		return SortLowest
	default:
		return SortNone
	}
}

// Filter selects results by exact equality. Empty fields match everything.
type Filter struct {
	Nama          string `json:"nama,omitempty"`
	MataPelajaran string `json:"mata_pelajaran,omitempty"`
	BabNama       string `json:"bab_nama,omitempty"`
	Status        string `json:"status,omitempty"`
	JenisUjian    string `json:"jenis_ujian,omitempty"`
}

func (f Filter) match(r Result) bool {
	return (f.Nama == "" || r.Nama == f.Nama) &&
		(f.MataPelajaran == "" || r.MataPelajaran == f.MataPelajaran) &&
		(f.BabNama == "" || r.BabNama == f.BabNama) &&
		(f.Status == "" || r.Status == f.Status) &&
		(f.JenisUjian == "" || r.JenisUjian == f.JenisUjian)
}

// Query returns the visible result table. The input slice is never modified.
func Query(records []Result, f Filter, mode SortMode) []Result {
	out := make([]Result, 0, len(records))
	for _, r := range records {
		if f.match(r) {
			out = append(out, r)
		}
	}

	if mode != SortHighest && mode != SortLowest {
		return out
	}

	keys := make([]sortKey, len(out))
	for i, r := range out {
		t, ok := ParseTimestamp(r.Timestamp)
		keys[i] = sortKey{score: r.Nilai, at: t, timed: ok}
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.score != kb.score {
			if mode == SortHighest {
				return ka.score > kb.score
			}
			return ka.score < kb.score
		}
		return ka.earlier(kb)
	})

	sorted := make([]Result, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

type sortKey struct {
	score float64
	at    time.Time
	timed bool
}

// earlier orders by submission time; untimed rows go after timed ones.
func (k sortKey) earlier(o sortKey) bool {
	switch {
	case k.timed && o.timed:
		return k.at.Before(o.at)
	case k.timed:
		return true
	default:
		return false
	}
}

// FilterOptions holds the dropdown values derived from a result set.
type FilterOptions struct {
	Names     []string `json:"names"`
	Subjects  []string `json:"subjects"`
	Chapters  []string `json:"chapters"`
	ExamTypes []string `json:"exam_types"`
	Statuses  []string `json:"statuses,omitempty"`
}

// Options lists the distinct non-blank values of each filter dimension, sorted.
// Statuses are only filled when withStatus is set.
func Options(records []Result, withStatus bool) FilterOptions {
	pick := func(get func(Result) string) []string {
		vals := make([]string, 0, len(records))
		for _, r := range records {
			vals = append(vals, get(r))
		}
		return distinctSorted(vals)
	}
	opts := FilterOptions{
		Names:     pick(func(r Result) string { return r.Nama }),
		Subjects:  pick(func(r Result) string { return r.MataPelajaran }),
		Chapters:  pick(func(r Result) string { return r.BabNama }),
		ExamTypes: pick(func(r Result) string { return r.JenisUjian }),
	}
	if withStatus {
		opts.Statuses = pick(func(r Result) string { return r.Status })
	}
	return opts
}

// SubjectOptions builds the subject dropdown from the mapel reference list
// instead of the loaded results. Values are trimmed.
func SubjectOptions(mapel []string) []string {
	vals := make([]string, 0, len(mapel))
	for _, m := range mapel {
		vals = append(vals, strings.TrimSpace(m))
	}
	return distinctSorted(vals)
}

func distinctSorted(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Summary aggregates the visible result set.
type Summary struct {
	Participants int     `json:"participants"`
	AverageScore float64 `json:"average_score"`
	HighestScore float64 `json:"highest_score"`
	LowestScore  float64 `json:"lowest_score"`
	Passed       int     `json:"passed"`
}

// PassStatus is the status value the exam sheet writes for a passing result.
const PassStatus = "Lulus"

func Summarize(records []Result) Summary {
	s := Summary{Participants: len(records)}
	if len(records) == 0 {
		return s
	}
	var total float64
	s.HighestScore = records[0].Nilai
	s.LowestScore = records[0].Nilai
	for _, r := range records {
		total += r.Nilai
		if r.Nilai > s.HighestScore {
			s.HighestScore = r.Nilai
		}
		if r.Nilai < s.LowestScore {
			s.LowestScore = r.Nilai
		}
		if strings.EqualFold(strings.TrimSpace(r.Status), PassStatus) {
			s.Passed++
		}
	}
	s.AverageScore = total / float64(len(records))
	return s
}
