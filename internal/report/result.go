package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cbtsheet/internal/sheet"

	"github.com/google/uuid"
)

// AnswerColumns is the number of per-question answer columns (soal_1..soal_20).
const AnswerColumns = 20

// Result is one student's exam result as held by the result table.
type Result struct {
	ID            string                `json:"id"`
	Nama          string                `json:"nama"`
	MataPelajaran string                `json:"mata_pelajaran"`
	BabNama       string                `json:"bab_nama"`
	JenisUjian    string                `json:"jenis_ujian"`
	Status        string                `json:"status"`
	Nilai         float64               `json:"nilai"`
	Persentase    float64               `json:"persentase"`
	Timestamp     string                `json:"timestamp"`
	FileUjian     string                `json:"file_ujian"`
	Answers       [AnswerColumns]string `json:"answers"`
}

var resultNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("cbtsheet/exam-results"))

type wireResult struct {
	ID            sheet.Text   `json:"id"`
	Nama          sheet.Text   `json:"nama"`
	MataPelajaran sheet.Text   `json:"mata_pelajaran"`
	BabNama       sheet.Text   `json:"bab_nama"`
	JenisUjian    sheet.Text   `json:"jenis_ujian"`
	Status        sheet.Text   `json:"status"`
	Nilai         sheet.Number `json:"nilai"`
	Persentase    sheet.Number `json:"persentase"`
	Timestamp     sheet.Text   `json:"timestamp"`
	FileUjian     sheet.Text   `json:"file_ujian"`
	Soal1         sheet.Text   `json:"soal_1"`
	Soal2         sheet.Text   `json:"soal_2"`
	Soal3         sheet.Text   `json:"soal_3"`
	Soal4         sheet.Text   `json:"soal_4"`
	Soal5         sheet.Text   `json:"soal_5"`
	Soal6         sheet.Text   `json:"soal_6"`
	Soal7         sheet.Text   `json:"soal_7"`
	Soal8         sheet.Text   `json:"soal_8"`
	Soal9         sheet.Text   `json:"soal_9"`
	Soal10        sheet.Text   `json:"soal_10"`
	Soal11        sheet.Text   `json:"soal_11"`
	Soal12        sheet.Text   `json:"soal_12"`
	Soal13        sheet.Text   `json:"soal_13"`
	Soal14        sheet.Text   `json:"soal_14"`
	Soal15        sheet.Text   `json:"soal_15"`
	Soal16        sheet.Text   `json:"soal_16"`
	Soal17        sheet.Text   `json:"soal_17"`
	Soal18        sheet.Text   `json:"soal_18"`
	Soal19        sheet.Text   `json:"soal_19"`
	Soal20        sheet.Text   `json:"soal_20"`
}

// result converts a fetched row. pos is the row's arrival position and only
// feeds the fallback id, so identical fetches produce identical ids.
func (w wireResult) result(pos int) Result {
	r := Result{
		ID:            w.ID.String(),
		Nama:          w.Nama.String(),
		MataPelajaran: w.MataPelajaran.String(),
		BabNama:       w.BabNama.String(),
		JenisUjian:    w.JenisUjian.String(),
		Status:        w.Status.String(),
		Nilai:         w.Nilai.Float(),
		Persentase:    w.Persentase.Float(),
		Timestamp:     w.Timestamp.String(),
		FileUjian:     w.FileUjian.String(),
		Answers: [AnswerColumns]string{
			w.Soal1.String(), w.Soal2.String(), w.Soal3.String(), w.Soal4.String(), w.Soal5.String(),
			w.Soal6.String(), w.Soal7.String(), w.Soal8.String(), w.Soal9.String(), w.Soal10.String(),
			w.Soal11.String(), w.Soal12.String(), w.Soal13.String(), w.Soal14.String(), w.Soal15.String(),
			w.Soal16.String(), w.Soal17.String(), w.Soal18.String(), w.Soal19.String(), w.Soal20.String(),
		},
	}
	if r.ID == "" {
		r.ID = fallbackID(pos, r)
	}
	return r
}

func fallbackID(pos int, r Result) string {
	key := strings.Join([]string{
		strconv.Itoa(pos),
		r.Nama,
		r.MataPelajaran,
		r.BabNama,
		r.JenisUjian,
		r.Timestamp,
		strconv.FormatFloat(r.Nilai, 'f', -1, 64),
	}, "\x1f")
	return uuid.NewSHA1(resultNamespace, []byte(key)).String()
}

func decodeResults(rows []wireResult) []Result {
	out := make([]Result, 0, len(rows))
	for i, w := range rows {
		out = append(out, w.result(i))
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	// Slash dates are always month first, like the sheet's locale-free JS
	// Date parsing. Day-first values do not parse and sort last in a tie.
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseTimestamp reads the submission time of a result. ok is false when the
// value is blank or in an unknown format.
func ParseTimestamp(v string) (t time.Time, ok bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateLabel formats a timestamp as DD/MM/YYYY, returning the raw value when it
// cannot be parsed.
func DateLabel(v string) string {
	t, ok := ParseTimestamp(v)
	if !ok {
		return v
	}
	return t.Format("02/01/2006")
}

func (r Result) String() string {
	return fmt.Sprintf("%s %s/%s %.2f", r.Nama, r.MataPelajaran, r.BabNama, r.Nilai)
}
