package masterdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"

	"cbtsheet/internal/sheet"
)

type fakeWrite struct {
	action string
	fields map[string]any
}

type fakeSheet struct {
	mapel    string
	students string
	readErr  error
	writeErr error
	writes   []fakeWrite
}

func (f *fakeSheet) Read(ctx context.Context, action string, params url.Values, out any) error {
	if f.readErr != nil {
		return f.readErr
	}
	return json.Unmarshal([]byte(f.mapel), out)
}

func (f *fakeSheet) ReadLenient(ctx context.Context, action string, params url.Values, out any) error {
	if f.readErr != nil {
		return f.readErr
	}
	return json.Unmarshal([]byte(f.students), out)
}

func (f *fakeSheet) Write(ctx context.Context, action string, fields map[string]any) sheet.WriteResult {
	f.writes = append(f.writes, fakeWrite{action: action, fields: fields})
	if f.writeErr != nil {
		return sheet.WriteResult{Action: action, Status: sheet.WriteTransportFailed, Err: f.writeErr}
	}
	return sheet.WriteResult{Action: action, Status: sheet.WriteAccepted}
}

const mapelRows = `[
	{"mapel":"Matematika","materi":"Bab 1","sheetName":"MTK_1","status":"Izinkan"},
	{"mapel":"IPA","materi":"Bab 1","sheetName":"IPA_1"},
	{"mapel":"Matematika","materi":"Bab 2","sheetName":"MTK_2","status":"Tidak Diizinkan"}
]`

const studentRows = `[
	{"id":"2","nisn":"1001","nama_siswa":"Ani"},
	{"id":"3","nisn":1002,"nama_siswa":"Budi"}
]`

func TestListMapelAssignsRowIDs(t *testing.T) {
	svc := NewService(&fakeSheet{mapel: mapelRows})

	items, err := svc.ListMapel(context.Background())
	if err != nil {
		t.Fatalf("list mapel: %v", err)
	}
	if len(items) != 3 || items[0].ID != "2" || items[2].ID != "4" {
		t.Fatalf("unexpected ids: %+v", items)
	}
	if items[1].Status != "" {
		t.Fatalf("expected missing status to be empty, got %q", items[1].Status)
	}
}

func TestSubjectsTopicsAndSheetName(t *testing.T) {
	svc := NewService(&fakeSheet{mapel: mapelRows})
	ctx := context.Background()

	subjects, _ := svc.Subjects(ctx)
	if strings.Join(subjects, ",") != "Matematika,IPA" {
		t.Fatalf("unexpected subjects: %v", subjects)
	}
	topics, _ := svc.Topics(ctx, "Matematika")
	if strings.Join(topics, ",") != "Bab 1,Bab 2" {
		t.Fatalf("unexpected topics: %v", topics)
	}

	name, ok, err := svc.SheetName(ctx, "Matematika", "Bab 2")
	if err != nil || !ok || name != "MTK_2" {
		t.Fatalf("unexpected sheet name: %q ok=%v err=%v", name, ok, err)
	}
	if _, ok, _ := svc.SheetName(ctx, "IPA", "Bab 9"); ok {
		t.Fatalf("expected unknown pair")
	}
}

func TestCreateMapelValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      MapelInput
		wantErr error
	}{
		{name: "valid", in: MapelInput{Mapel: "IPS", Materi: "Bab 1", SheetName: "IPS_1", Status: "Izinkan"}},
		{name: "valid without status", in: MapelInput{Mapel: "IPS", Materi: "Bab 1", SheetName: "IPS_1"}},
		{name: "blank sheet name", in: MapelInput{Mapel: "IPS", Materi: "Bab 1", SheetName: "  "}, wantErr: ErrInvalidInput},
		{name: "unknown status", in: MapelInput{Mapel: "IPS", Materi: "Bab 1", SheetName: "IPS_1", Status: "Mungkin"}, wantErr: ErrInvalidInput},
		{name: "two word status", in: MapelInput{Mapel: "IPS", Materi: "Bab 1", SheetName: "IPS_1", Status: "Tidak Diizinkan"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := &fakeSheet{}
			err := NewService(fs).CreateMapel(context.Background(), tc.in)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr != nil {
				if len(fs.writes) != 0 {
					t.Fatalf("expected no write on invalid input")
				}
				return
			}
			if len(fs.writes) != 1 || fs.writes[0].action != sheet.ActionAddMapelData {
				t.Fatalf("unexpected writes: %+v", fs.writes)
			}
		})
	}
}

func TestDeleteAllMapelUsesDeleteAllQuestions(t *testing.T) {
	fs := &fakeSheet{}
	if err := NewService(fs).DeleteAllMapel(context.Background()); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if len(fs.writes) != 1 || fs.writes[0].action != sheet.ActionDeleteAllQuestions {
		t.Fatalf("unexpected writes: %+v", fs.writes)
	}
}

func TestCreateStudentRejectsDuplicateNISN(t *testing.T) {
	fs := &fakeSheet{students: studentRows}
	svc := NewService(fs)
	ctx := context.Background()

	if err := svc.CreateStudent(ctx, StudentInput{NISN: " 1002 ", NamaSiswa: "Citra"}); !errors.Is(err, ErrDuplicateNISN) {
		t.Fatalf("expected ErrDuplicateNISN, got %v", err)
	}
	if len(fs.writes) != 0 {
		t.Fatalf("expected no write for duplicate")
	}

	if err := svc.CreateStudent(ctx, StudentInput{NISN: "1003", NamaSiswa: " Citra "}); err != nil {
		t.Fatalf("create: %v", err)
	}
	rows, ok := fs.writes[0].fields["data"].([]studentRow)
	if !ok || len(rows) != 1 || rows[0].NamaSiswa != "Citra" {
		t.Fatalf("unexpected payload: %#v", fs.writes[0].fields)
	}
}

func TestUpdateStudentDuplicateCheckExcludesSelf(t *testing.T) {
	fs := &fakeSheet{students: studentRows}
	svc := NewService(fs)
	ctx := context.Background()

	if err := svc.UpdateStudent(ctx, "2", StudentInput{NISN: "1001", NamaSiswa: "Ani Lestari"}); err != nil {
		t.Fatalf("update own nisn: %v", err)
	}
	if err := svc.UpdateStudent(ctx, "2", StudentInput{NISN: "1002", NamaSiswa: "Ani"}); !errors.Is(err, ErrDuplicateNISN) {
		t.Fatalf("expected ErrDuplicateNISN, got %v", err)
	}
	if err := svc.UpdateStudent(ctx, " ", StudentInput{NISN: "1009", NamaSiswa: "Ani"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank id, got %v", err)
	}
	if len(fs.writes) != 1 || fs.writes[0].fields["id"] != "2" {
		t.Fatalf("unexpected writes: %+v", fs.writes)
	}
}

func TestListStudentsFallbackID(t *testing.T) {
	svc := NewService(&fakeSheet{students: `[{"nisn":"77","nama_siswa":"Dodi"}]`})
	items, err := svc.ListStudents(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != "77-Dodi" {
		t.Fatalf("unexpected students: %+v", items)
	}
}

func TestImportStudentsCSV(t *testing.T) {
	fs := &fakeSheet{students: studentRows}
	svc := NewService(fs)

	csvBody := "NISN,Nama Siswa\n2001,Eka\n1001,Ani Lagi\n,Tanpa NISN\n\n2001,Eka Dobel\n2002,Fajar\n"
	report, err := svc.ImportStudentsCSV(context.Background(), strings.NewReader(csvBody))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.TotalRows != 5 || report.SuccessRows != 2 || report.FailedRows != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(fs.writes) != 1 {
		t.Fatalf("expected one write, got %d", len(fs.writes))
	}
	rows := fs.writes[0].fields["data"].([]studentRow)
	if rows[0].NISN != "2001" || rows[1].NISN != "2002" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	_, err = svc.ImportStudentsCSV(context.Background(), strings.NewReader("nisn,kelas\n1,X\n"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing column, got %v", err)
	}
}
