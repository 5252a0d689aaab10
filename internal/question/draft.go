package question

import (
	"strconv"
	"sync"
)

// Draft is the working copy of one mapel/materi bank. At most one record is
// in edit mode; only that record accepts field updates.
type Draft struct {
	mu        sync.Mutex
	records   []Record
	editingID string
	// deleting holds ids whose deleteQuestion write is in flight.
	deleting map[string]bool
}

type DraftView struct {
	Mapel     string   `json:"mapel"`
	Materi    string   `json:"materi"`
	Questions []Record `json:"questions"`
	EditingID string   `json:"editing_id,omitempty"`
}

func (d *Draft) view(sel Selection) DraftView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DraftView{
		Mapel:     sel.Mapel,
		Materi:    sel.Materi,
		Questions: cloneRecords(d.records),
		EditingID: d.editingID,
	}
}

func (d *Draft) snapshot() []Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneRecords(d.records)
}

func (d *Draft) replace(records []Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = cloneRecords(records)
	d.editingID = ""
}

func (d *Draft) add() Record {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.records) + 1
	for d.indexOf(strconv.Itoa(n)) >= 0 {
		n++
	}
	rec := Record{ID: strconv.Itoa(n), Jawaban: "A"}
	d.records = append(d.records, rec)
	return rec
}

func (d *Draft) startEdit(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.indexOf(id) < 0 {
		return ErrQuestionNotFound
	}
	if d.editingID != "" && d.editingID != id {
		return ErrEditInProgress
	}
	d.editingID = id
	return nil
}

func (d *Draft) update(id, field, value string) (Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.indexOf(id)
	if idx < 0 {
		return Record{}, ErrQuestionNotFound
	}
	if d.editingID != id {
		return Record{}, ErrNotEditing
	}
	rec := d.records[idx]
	if err := rec.setField(field, value); err != nil {
		return Record{}, err
	}
	d.records[idx] = rec
	return rec, nil
}

func (d *Draft) editing() (Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.editingID == "" {
		return Record{}, ErrNotEditing
	}
	idx := d.indexOf(d.editingID)
	if idx < 0 {
		return Record{}, ErrQuestionNotFound
	}
	return d.records[idx], nil
}

// commitEdit stores the saved record and leaves edit mode.
func (d *Draft) commitEdit(rec Record) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if idx := d.indexOf(rec.ID); idx >= 0 {
		d.records[idx] = rec
	}
	if d.editingID == rec.ID {
		d.editingID = ""
	}
}

func (d *Draft) clearEdit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.editingID = ""
}

// reserveDelete marks id as being deleted. Records already reserved count
// as gone, so concurrent deletes can never empty the bank.
func (d *Draft) reserveDelete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.indexOf(id) < 0 || d.deleting[id] {
		return ErrQuestionNotFound
	}
	remaining := len(d.records)
	for i := range d.records {
		if d.deleting[d.records[i].ID] {
			remaining--
		}
	}
	if remaining <= 1 {
		return ErrLastQuestion
	}
	if d.deleting == nil {
		d.deleting = make(map[string]bool)
	}
	d.deleting[id] = true
	return nil
}

// finishDelete drops the reservation and removes the record when the write
// was accepted.
func (d *Draft) finishDelete(id string, accepted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.deleting, id)
	if !accepted {
		return
	}
	idx := d.indexOf(id)
	if idx < 0 {
		return
	}
	d.records = append(d.records[:idx:idx], d.records[idx+1:]...)
	if d.editingID == id {
		d.editingID = ""
	}
}

// indexOf expects d.mu to be held.
func (d *Draft) indexOf(id string) int {
	for i := range d.records {
		if d.records[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneRecords(in []Record) []Record {
	out := make([]Record, len(in))
	copy(out, in)
	return out
}
