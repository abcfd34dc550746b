package workflow

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
)

func pdf(name string, size int64) model.SourceDocument {
	return model.SourceDocument{Name: name, MediaType: model.MediaTypePDF, Size: size, Content: []byte("%PDF")}
}

func items(counts ...int) []model.PreviewItem {
	out := make([]model.PreviewItem, 0, len(counts))
	for i, c := range counts {
		out = append(out, model.PreviewItem{
			Number:         model.ItemID(fmt.Sprintf("Q%d", i+1)),
			Text:           fmt.Sprintf("Вопрос %d", i+1),
			Marks:          5,
			SuggestedCount: c,
		})
	}
	return out
}

func members(n int) []model.Recipient {
	out := make([]model.Recipient, 0, n)
	for i := range n {
		out = append(out, model.Recipient{
			ID:           model.FlexString(fmt.Sprintf("r%d", i+1)),
			DisplayOrder: model.FlexString(fmt.Sprint(i + 1)),
			Name:         fmt.Sprintf("Learner %d", i+1),
		})
	}
	return out
}

// analyzed возвращает состояние с документом и успешным preview.
func analyzed(t *testing.T, counts ...int) State {
	t.Helper()
	s, err := New().SetPrimaryDocument(pdf("paper.pdf", 2*1024*1024))
	if err != nil {
		t.Fatalf("SetPrimaryDocument: %v", err)
	}
	s, token, err := s.BeginAnalysis()
	if err != nil {
		t.Fatalf("BeginAnalysis: %v", err)
	}
	s, ok := s.ApplyAnalysis(token, items(counts...))
	if !ok {
		t.Fatal("ApplyAnalysis: результат отброшен")
	}
	return s
}

// withGroup загружает группу с n участниками.
func withGroup(t *testing.T, s State, id string, n int) State {
	t.Helper()
	s, token := s.SetGroup(id)
	s, ok := s.ApplyMembers(token, members(n))
	if !ok {
		t.Fatal("ApplyMembers: результат отброшен")
	}
	return s
}

// readyState — все предусловия отправки выполнены.
func readyState(t *testing.T) State {
	t.Helper()
	s := withGroup(t, analyzed(t, 2, 3, 1), "g1", 3)
	s = s.ToggleMember("r1")
	if s.Phase != PhaseReady {
		t.Fatalf("Phase = %q, ожидалась ready", s.Phase)
	}
	return s
}

// --- Intake ---

func TestSetPrimaryDocument_Validation(t *testing.T) {
	tests := []struct {
		name     string
		doc      model.SourceDocument
		wantCode string
	}{
		{"valid", pdf("a.pdf", 1024), ""},
		{"exactly 10 MiB", pdf("a.pdf", model.MaxDocumentSize), ""},
		{"too large", pdf("a.pdf", model.MaxDocumentSize+1), CodeDocumentTooLarge},
		{"wrong type", model.SourceDocument{Name: "a.docx", MediaType: model.MediaTypeDOCX, Size: 10}, CodeInvalidDocumentType},
		{"empty type", model.SourceDocument{Name: "a", Size: 10}, CodeInvalidDocumentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New().SetPrimaryDocument(tt.doc)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("неожиданная ошибка: %v", err)
				}
				if s.Document == nil || s.Document.Name != tt.doc.Name {
					t.Error("документ не установлен")
				}
				return
			}
			if CodeOf(err) != tt.wantCode {
				t.Errorf("код = %q, ожидался %q", CodeOf(err), tt.wantCode)
			}
			if KindOf(err) != KindInvalidInput {
				t.Errorf("класс = %q, ожидался %q", KindOf(err), KindInvalidInput)
			}
			if s.Document != nil {
				t.Error("документ не должен быть установлен")
			}
		})
	}
}

// TestSetPrimaryDocument_ClearsPreview — замена документа всегда
// очищает preview и OverrideMap.
func TestSetPrimaryDocument_ClearsPreview(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range 50 {
		counts := make([]int, 1+rng.IntN(8))
		for j := range counts {
			counts[j] = 1 + rng.IntN(6)
		}
		s := analyzed(t, counts...)
		s = s.SetOverride("Q1", fmt.Sprint(rng.IntN(20)))

		next, err := s.SetPrimaryDocument(pdf(fmt.Sprintf("next-%d.pdf", i), 100))
		if err != nil {
			t.Fatalf("SetPrimaryDocument: %v", err)
		}
		if len(next.Preview.Items) != 0 || len(next.Preview.Overrides) != 0 {
			t.Fatalf("итерация %d: preview не очищен: %d элементов, %d overrides",
				i, len(next.Preview.Items), len(next.Preview.Overrides))
		}
		if len(s.Preview.Items) != len(counts) {
			t.Fatal("исходное состояние изменено")
		}
	}
}

func TestRemovePrimaryDocument(t *testing.T) {
	s := analyzed(t, 2, 3)
	s = s.RemovePrimaryDocument()
	if s.Document != nil {
		t.Error("документ не удалён")
	}
	if len(s.Preview.Items) != 0 || len(s.Preview.Overrides) != 0 {
		t.Error("preview не очищен")
	}
}

func TestAddAttachments_PartialSuccess(t *testing.T) {
	files := []model.Attachment{
		{Name: "notes.txt", MediaType: model.MediaTypeText, Size: 10},
		{Name: "huge.pdf", MediaType: model.MediaTypePDF, Size: model.MaxAttachmentSize + 1},
		{Name: "img.png", MediaType: model.MediaTypePNG, Size: 100},
		{Name: "run.exe", MediaType: "application/x-msdownload", Size: 100},
	}

	s, rejected := New().AddAttachments(files)

	if len(s.Attachments) != 2 {
		t.Fatalf("принято %d вложений, ожидалось 2", len(s.Attachments))
	}
	if s.Attachments[0].Name != "notes.txt" || s.Attachments[1].Name != "img.png" {
		t.Errorf("порядок нарушен: %q, %q", s.Attachments[0].Name, s.Attachments[1].Name)
	}
	if len(rejected) != 2 {
		t.Fatalf("отклонено %d, ожидалось 2", len(rejected))
	}
	if rejected[0].Index != 1 || rejected[0].Err.Code != CodeAttachmentTooLarge {
		t.Errorf("rejected[0] = %+v", rejected[0])
	}
	if rejected[1].Index != 3 || rejected[1].Err.Code != CodeAttachmentTypeNotAllowed {
		t.Errorf("rejected[1] = %+v", rejected[1])
	}
}

func TestRemoveAttachment(t *testing.T) {
	s, _ := New().AddAttachments([]model.Attachment{
		{Name: "a.txt", MediaType: model.MediaTypeText, Size: 1},
		{Name: "b.txt", MediaType: model.MediaTypeText, Size: 1},
		{Name: "c.txt", MediaType: model.MediaTypeText, Size: 1},
	})

	next := s.RemoveAttachment(1)
	if len(next.Attachments) != 2 || next.Attachments[1].Name != "c.txt" {
		t.Errorf("после удаления: %+v", next.Attachments)
	}
	if len(s.Attachments) != 3 || s.Attachments[1].Name != "b.txt" {
		t.Error("исходное состояние изменено")
	}

	for _, idx := range []int{-1, 3, 100} {
		if got := s.RemoveAttachment(idx); len(got.Attachments) != 3 {
			t.Errorf("RemoveAttachment(%d) изменил список", idx)
		}
	}
}

// --- Preview ---

func TestApplyAnalysis_SeedsOverrides(t *testing.T) {
	s := analyzed(t, 2, 3, 1)
	want := map[model.ItemID]int{"Q1": 2, "Q2": 3, "Q3": 1}
	for k, v := range want {
		if s.Preview.Overrides[k] != v {
			t.Errorf("Overrides[%s] = %d, ожидалось %d", k, s.Preview.Overrides[k], v)
		}
	}
	if len(s.Preview.Overrides) != len(want) {
		t.Errorf("len(Overrides) = %d, ожидалось %d", len(s.Preview.Overrides), len(want))
	}
	if !s.PreviewReady() {
		t.Error("PreviewReady() = false")
	}
}

func TestApplyAnalysis_StaleTokenIgnored(t *testing.T) {
	s, _ := New().SetPrimaryDocument(pdf("first.pdf", 100))
	s, oldToken, _ := s.BeginAnalysis()

	// Документ заменён до ответа на первый анализ.
	s, _ = s.SetPrimaryDocument(pdf("second.pdf", 100))
	s, newToken, _ := s.BeginAnalysis()

	if newToken <= oldToken {
		t.Fatalf("токен не растёт: %d → %d", oldToken, newToken)
	}

	next, applied := s.ApplyAnalysis(oldToken, items(4, 4))
	if applied {
		t.Error("устаревший результат применён")
	}
	if len(next.Preview.Items) != 0 || !next.Preview.Loading {
		t.Error("состояние изменено устаревшим ответом")
	}

	if _, applied := s.FailAnalysis(oldToken, "boom"); applied {
		t.Error("устаревшая ошибка применена")
	}

	next, applied = s.ApplyAnalysis(newToken, items(1))
	if !applied || len(next.Preview.Items) != 1 {
		t.Error("актуальный результат не применён")
	}
}

func TestApplyAnalysis_AfterRemovalIgnored(t *testing.T) {
	s, _ := New().SetPrimaryDocument(pdf("paper.pdf", 100))
	s, token, _ := s.BeginAnalysis()
	s = s.RemovePrimaryDocument()

	next, applied := s.ApplyAnalysis(token, items(2))
	if applied || len(next.Preview.Items) != 0 {
		t.Error("результат анализа удалённого документа применён")
	}
}

func TestApplyAnalysis_DuplicateNumbersFail(t *testing.T) {
	s, _ := New().SetPrimaryDocument(pdf("paper.pdf", 100))
	s, token, _ := s.BeginAnalysis()
	dup := []model.PreviewItem{
		{Number: "1", SuggestedCount: 2},
		{Number: "1", SuggestedCount: 3},
	}

	s, applied := s.ApplyAnalysis(token, dup)
	if !applied {
		t.Fatal("ожидалось применение как ошибки анализа")
	}
	if len(s.Preview.Items) != 0 || s.Preview.Error == "" || s.Preview.Loading {
		t.Errorf("ожидался AnalysisFailed, получено %+v", s.Preview)
	}
}

func TestFailAnalysis(t *testing.T) {
	s, _ := New().SetPrimaryDocument(pdf("paper.pdf", 100))
	s, token, _ := s.BeginAnalysis()
	s, applied := s.FailAnalysis(token, "unsupported layout")
	if !applied {
		t.Fatal("ошибка не применена")
	}
	if s.Preview.Error != "unsupported layout" {
		t.Errorf("Preview.Error = %q", s.Preview.Error)
	}
	if s.PreviewReady() {
		t.Error("PreviewReady() = true после ошибки")
	}
	if s.Document == nil {
		t.Error("документ должен сохраниться для повторного анализа")
	}
}

func TestBeginAnalysis_NoDocument(t *testing.T) {
	if _, _, err := New().BeginAnalysis(); !errors.Is(err, ErrMissingDocument) {
		t.Errorf("ожидалась ErrMissingDocument, получено %v", err)
	}
}

func TestSetOverride(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"5", 5},
		{" 7 ", 7},
		{"1", 1},
		{"0", 3},
		{"-2", 3},
		{"abc", 3},
		{"", 3},
		{"2.5", 3},
		{"99999999999999999999999", 3},
	}

	base := analyzed(t, 2, 3, 1)
	for _, tt := range tests {
		s := base.SetOverride("Q2", tt.raw)
		if got := s.Preview.Overrides["Q2"]; got != tt.want {
			t.Errorf("SetOverride(Q2, %q) = %d, ожидалось %d", tt.raw, got, tt.want)
		}
	}

	s := base.SetOverride("Q99", "4")
	if _, ok := s.Preview.Overrides["Q99"]; ok {
		t.Error("неизвестный элемент добавлен в OverrideMap")
	}
}

// TestSetOverride_AlwaysPositive — никакой ввод не оставляет в карте
// неположительное значение.
func TestSetOverride_AlwaysPositive(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	inputs := []string{"", "x", "-1", "0", "1e3", "+4", "08", "∞", "  ", "12abc"}
	s := analyzed(t, 2, 3, 1)
	for range 500 {
		id := model.ItemID(fmt.Sprintf("Q%d", 1+rng.IntN(3)))
		raw := inputs[rng.IntN(len(inputs))]
		if rng.IntN(2) == 0 {
			raw = fmt.Sprint(rng.IntN(40) - 20)
		}
		s = s.SetOverride(id, raw)
		for k, v := range s.Preview.Overrides {
			if v < 1 {
				t.Fatalf("Overrides[%s] = %d после ввода %q", k, v, raw)
			}
		}
	}
}

// --- Recipients ---

func TestToggleMember(t *testing.T) {
	s := withGroup(t, New(), "g1", 3)

	s = s.ToggleMember("r2")
	if got := s.EffectiveSelection(); len(got) != 1 || got[0] != "r2" {
		t.Errorf("выбор = %v, ожидалось [r2]", got)
	}
	s = s.ToggleMember("r2")
	if got := s.EffectiveSelection(); len(got) != 0 {
		t.Errorf("выбор = %v, ожидался пустой", got)
	}

	if got := s.ToggleMember("unknown"); len(got.EffectiveSelection()) != 0 {
		t.Error("неизвестный участник добавлен в выбор")
	}

	if got := New().ToggleMember("r1"); len(got.Recipients.Selection.IDs) != 0 {
		t.Error("переключение без активной группы изменило выбор")
	}
}

func TestToggleMember_FromAllOf(t *testing.T) {
	s := withGroup(t, New(), "g1", 3).ToggleSelectAll()
	if s.Recipients.Selection.Mode != model.SelectionAll {
		t.Fatalf("Mode = %q, ожидался all", s.Recipients.Selection.Mode)
	}

	s = s.ToggleMember("r2")
	if s.Recipients.Selection.Mode != model.SelectionSubset {
		t.Errorf("Mode = %q, ожидался subset", s.Recipients.Selection.Mode)
	}
	got := s.EffectiveSelection()
	if len(got) != 2 || got[0] != "r1" || got[1] != "r3" {
		t.Errorf("выбор = %v, ожидалось [r1 r3]", got)
	}
	if s.AllSelected() {
		t.Error("AllSelected() = true")
	}
}

func TestToggleSelectAll_EmptyGroup(t *testing.T) {
	s := withGroup(t, New(), "empty", 0)
	next := s.ToggleSelectAll()
	if next.Recipients.Selection.Mode != model.SelectionSubset || next.AllSelected() {
		t.Error("select-all на пустой группе должен быть no-op")
	}
}

func TestSetGroup_Empty(t *testing.T) {
	s := withGroup(t, New(), "g1", 3).ToggleSelectAll()
	s, token := s.SetGroup("")
	if token != 0 {
		t.Errorf("token = %d, ожидался 0", token)
	}
	if s.Recipients.GroupID != "" || len(s.Recipients.Members) != 0 {
		t.Error("группа не очищена")
	}
	if s.Recipients.Selection.Mode != model.SelectionSubset || len(s.Recipients.Selection.IDs) != 0 {
		t.Error("выбор не очищен")
	}
}

func TestApplyMembers_StaleTokenIgnored(t *testing.T) {
	s, first := New().SetGroup("g1")
	s, second := s.SetGroup("g2")

	if _, applied := s.ApplyMembers(first, members(5)); applied {
		t.Error("участники устаревшей группы применены")
	}
	s, applied := s.ApplyMembers(second, members(2))
	if !applied || len(s.Recipients.Members) != 2 {
		t.Error("участники актуальной группы не применены")
	}
}

// TestSelectAllThenGroupChange — после select-all смена группы всегда
// даёт пустое подмножество.
func TestSelectAllThenGroupChange(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	for i := range 100 {
		s := withGroup(t, New(), "g1", 1+rng.IntN(6))
		for range rng.IntN(10) {
			if rng.IntN(3) == 0 {
				s = s.ToggleSelectAll()
			} else {
				s = s.ToggleMember(fmt.Sprintf("r%d", 1+rng.IntN(6)))
			}
		}
		s = s.ToggleSelectAll()
		s = withGroup(t, s, fmt.Sprintf("g%d", i+2), rng.IntN(5))

		if s.Recipients.Selection.Mode != model.SelectionSubset {
			t.Fatalf("итерация %d: Mode = %q после смены группы", i, s.Recipients.Selection.Mode)
		}
		if len(s.EffectiveSelection()) != 0 || s.AllSelected() {
			t.Fatalf("итерация %d: выбор не сброшен", i)
		}
	}
}

// TestScenario_SelectAllAndGroupSwap — группа из 5, выбрано 2, затем
// «выбрать всех», затем смена группы на группу из 3.
func TestScenario_SelectAllAndGroupSwap(t *testing.T) {
	s := withGroup(t, New(), "g5", 5)
	s = s.ToggleMember("r1").ToggleMember("r4")
	if len(s.EffectiveSelection()) != 2 {
		t.Fatalf("выбрано %d, ожидалось 2", len(s.EffectiveSelection()))
	}

	s = s.ToggleSelectAll()
	if got := len(s.EffectiveSelection()); got != 5 || !s.AllSelected() {
		t.Fatalf("после select-all выбрано %d, AllSelected=%v", got, s.AllSelected())
	}

	s = withGroup(t, s, "g3", 3)
	if len(s.EffectiveSelection()) != 0 {
		t.Errorf("выбор не сброшен: %v", s.EffectiveSelection())
	}
	if s.AllSelected() {
		t.Error("AllSelected() = true после смены группы")
	}
}

// --- Submission ---

func TestBuildRequest_PreconditionOrder(t *testing.T) {
	full := readyState(t)

	noDoc := full.RemovePrimaryDocument()
	noGroup, _ := full.SetGroup("")
	noSelection := full.ToggleMember("r1")
	loading, _, _ := full.BeginAnalysis()

	tests := []struct {
		name  string
		state State
		want  *Error
	}{
		{"пустое состояние", New(), ErrMissingDocument},
		{"нет документа и группы", func() State { s, _ := noDoc.SetGroup(""); return s }(), ErrMissingDocument},
		{"нет документа", noDoc, ErrMissingDocument},
		{"анализ выполняется", loading, ErrMissingPreview},
		{"нет preview и группы", func() State { s, _ := loading.SetGroup(""); return s }(), ErrMissingPreview},
		{"нет группы", noGroup, ErrMissingGroup},
		{"пустой выбор", noSelection, ErrEmptySelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.state.BuildRequest("id", time.Now())
			if !errors.Is(err, tt.want) {
				t.Errorf("ошибка = %v, ожидалась %v", err, tt.want)
			}
			if KindOf(err) != KindValidation {
				t.Errorf("класс = %q, ожидался validation", KindOf(err))
			}
		})
	}
}

// TestScenario_OverrideFallback — "abc" для Q2 даёт предложенное 3.
func TestScenario_OverrideFallback(t *testing.T) {
	s := analyzed(t, 2, 3, 1)
	if s.Document.Size != 2*1024*1024 {
		t.Fatalf("Size = %d", s.Document.Size)
	}
	s = s.SetOverride("Q2", "abc")
	s = withGroup(t, s, "g1", 2).ToggleSelectAll()

	req, err := s.BuildRequest("req-1", time.Now())
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	got := req.Overrides()
	want := map[model.ItemID]int{"Q1": 2, "Q2": 3, "Q3": 1}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Overrides[%s] = %d, ожидалось %d", k, got[k], v)
		}
	}
	if req.Mode() != model.SelectionAll || len(req.MemberIDs()) != 0 {
		t.Errorf("Mode = %q, MemberIDs = %v", req.Mode(), req.MemberIDs())
	}
}

func TestSanitizedOverrides_MissingEntries(t *testing.T) {
	s := analyzed(t, 4, 2)
	s.Preview.Overrides = map[model.ItemID]int{"Q1": 0}
	got := s.SanitizedOverrides()
	if got["Q1"] != 4 || got["Q2"] != 2 {
		t.Errorf("SanitizedOverrides() = %v", got)
	}
}

func TestGenerationRequest_Immutable(t *testing.T) {
	s := readyState(t)
	s, _ = s.AddAttachments([]model.Attachment{{Name: "n.txt", MediaType: model.MediaTypeText, Size: 1, Content: []byte("x")}})
	req, err := s.BuildRequest("req", time.Now())
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	o := req.Overrides()
	o["Q1"] = 100
	ids := req.MemberIDs()
	ids[0] = "zzz"
	a := req.Attachments()
	a[0].Content[0] = 'y'

	if req.Overrides()["Q1"] == 100 || req.MemberIDs()[0] == "zzz" || req.Attachments()[0].Content[0] == 'y' {
		t.Error("снимок изменён через аксессор")
	}

	s = s.SetOverride("Q1", "50")
	if req.Overrides()["Q1"] == 50 {
		t.Error("снимок изменён последующим переходом")
	}
}

func TestBeginSubmission_InFlight(t *testing.T) {
	s, req, err := readyState(t).BeginSubmission("req-1", time.Now())
	if err != nil {
		t.Fatalf("BeginSubmission: %v", err)
	}
	if req.ID() != "req-1" || s.Phase != PhaseSubmitting {
		t.Fatalf("ID = %q, Phase = %q", req.ID(), s.Phase)
	}

	_, _, err = s.BeginSubmission("req-2", time.Now())
	if !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("ожидалась ErrSubmissionInFlight, получено %v", err)
	}
	if KindOf(err) != KindConflict {
		t.Errorf("класс = %q, ожидался conflict", KindOf(err))
	}
}

func TestCompleteSubmission(t *testing.T) {
	s, _, _ := readyState(t).BeginSubmission("req", time.Now())
	artifacts := DeriveArtifacts([]model.GeneratedArtifact{
		{ID: "a1", Name: "Alice"},
		{ID: "", Name: "broken"},
		{ID: "a2", Name: "Bob"},
	})
	s = s.CompleteSubmission(artifacts, Notice{Kind: NoticeSuccess, Message: "2"})

	if s.Phase != PhaseCompleted {
		t.Errorf("Phase = %q", s.Phase)
	}
	if len(s.Artifacts) != 2 {
		t.Fatalf("артефактов %d, ожидалось 2", len(s.Artifacts))
	}
	if s.Artifacts[1].DisplayName != "Answer Sheet 2 for Bob" {
		t.Errorf("DisplayName = %q", s.Artifacts[1].DisplayName)
	}

	// Повторная отправка из completed допустима и заменяет список.
	s, _, err := s.BeginSubmission("req2", time.Now())
	if err != nil {
		t.Fatalf("повторная отправка: %v", err)
	}
	s = s.CompleteSubmission(DeriveArtifacts([]model.GeneratedArtifact{{ID: "a3", Name: "Eve"}}), Notice{Kind: NoticeSuccess})
	if len(s.Artifacts) != 1 || s.Artifacts[0].ID != "a3" {
		t.Errorf("список не заменён: %+v", s.Artifacts)
	}
}

// TestScenario_SubmissionFailure — ошибка сервиса "quota exceeded"
// видна пользователю, preview и OverrideMap не меняются.
func TestScenario_SubmissionFailure(t *testing.T) {
	s := readyState(t).SetOverride("Q1", "6")
	s, _, _ = s.BeginSubmission("ok", time.Now())
	s = s.CompleteSubmission(DeriveArtifacts([]model.GeneratedArtifact{{ID: "old", Name: "A"}}), Notice{})

	before := s.Clone()
	s, _, err := s.BeginSubmission("req", time.Now())
	if err != nil {
		t.Fatalf("BeginSubmission: %v", err)
	}
	s = s.FailSubmission("quota exceeded")

	if s.Error != "quota exceeded" {
		t.Errorf("Error = %q", s.Error)
	}
	if s.Phase != PhaseFailed {
		t.Errorf("Phase = %q", s.Phase)
	}
	if len(s.Preview.Items) != len(before.Preview.Items) || s.Preview.Overrides["Q1"] != 6 {
		t.Error("preview или OverrideMap изменены")
	}
	if len(s.Artifacts) != 1 || s.Artifacts[0].ID != "old" {
		t.Error("результаты изменены при ошибке")
	}

	// Повтор без повторной загрузки.
	s, _, err = s.BeginSubmission("retry", time.Now())
	if err != nil {
		t.Fatalf("повторная отправка: %v", err)
	}
	if s.Error != "" {
		t.Error("слот ошибки не очищен при повторе")
	}
}

func TestPhase_ReturnsToIdle(t *testing.T) {
	s, _, _ := readyState(t).BeginSubmission("req", time.Now())
	s = s.FailSubmission("x")

	s = s.RemovePrimaryDocument()
	if s.Phase != PhaseIdle {
		t.Errorf("Phase = %q, ожидалась idle", s.Phase)
	}

	last := s.PhaseHistory[len(s.PhaseHistory)-1]
	if last.From != PhaseFailed || last.To != PhaseIdle {
		t.Errorf("последний переход %s → %s", last.From, last.To)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseIdle, PhaseReady, true},
		{PhaseIdle, PhaseSubmitting, false},
		{PhaseReady, PhaseSubmitting, true},
		{PhaseSubmitting, PhaseReady, false},
		{PhaseSubmitting, PhaseCompleted, true},
		{PhaseFailed, PhaseSubmitting, true},
		{PhaseCompleted, PhaseFailed, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, ожидалось %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestWithProgress_Clamped(t *testing.T) {
	for _, v := range []int{-5, 0, 50, 100, 150} {
		got := New().WithProgress(v).Progress
		if got < 0 || got > 100 {
			t.Errorf("WithProgress(%d) = %d", v, got)
		}
	}
}

func TestArtifactLookup(t *testing.T) {
	s, _, _ := readyState(t).BeginSubmission("req", time.Now())
	s = s.CompleteSubmission(DeriveArtifacts([]model.GeneratedArtifact{
		{ID: "a1", Name: "A"}, {ID: "a2", Name: "B"},
	}), Notice{})

	a, n, ok := s.Artifact("a2")
	if !ok || n != 2 || a.RecipientName != "B" {
		t.Errorf("Artifact(a2) = %+v, %d, %v", a, n, ok)
	}
	if _, _, ok := s.Artifact("zz"); ok {
		t.Error("найден несуществующий артефакт")
	}
	if ids := s.ArtifactIDs(); len(ids) != 2 || ids[0] != "a1" {
		t.Errorf("ArtifactIDs() = %v", ids)
	}
}
