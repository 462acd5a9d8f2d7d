package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"act-reconciliation-service/internal/models"
)

func createTestRecords(texts ...string) []*models.CanonicalRecord {
	records := make([]*models.CanonicalRecord, 0, len(texts))
	for _, text := range texts {
		records = append(records, &models.CanonicalRecord{Text: text, Date: "01.02.2024", Amount: "100"})
	}
	return records
}

func TestPreFilter(t *testing.T) {
	records := createTestRecords(
		"Реализация №20",
		"Платежное поручение №333",
		"Оплата по счету 12",
		"Корректировка реализации (оплата частична)",
		"Поступление товаров №7",
	)

	kept := PreFilter(records, nil)
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept records, got %d", len(kept))
	}
	if kept[0].Text != "Реализация №20" {
		t.Errorf("unexpected first kept record: %q", kept[0].Text)
	}
	// An expense keyword overrides the income keyword.
	if kept[1].Text != "Корректировка реализации (оплата частична)" {
		t.Errorf("unexpected second kept record: %q", kept[1].Text)
	}
}

func TestPreFilterEmptyKeywords(t *testing.T) {
	records := createTestRecords("Оплата по счету 12")
	kept := PreFilter(records, &Options{})
	if len(kept) != 1 {
		t.Errorf("expected all records kept with empty keyword lists, got %d", len(kept))
	}
}

// fakeClient returns canned responses keyed by call order.
type fakeClient struct {
	responses []string
	errs      []error
	calls     int
	payloads  []string
}

func (f *fakeClient) Complete(ctx context.Context, system, user string) (string, error) {
	i := f.calls
	f.calls++
	f.payloads = append(f.payloads, user)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "[]", nil
}

func TestApplyKeepsOnlyIncluded(t *testing.T) {
	client := &fakeClient{responses: []string{`[{"id":0,"include":true},{"id":1,"include":false}]`}}
	f := NewFilter(client, nil)

	records := createTestRecords("Реализация №20", "Акт безубыточности")
	filtered, err := f.Apply(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Text != "Реализация №20" {
		t.Errorf("unexpected filtered set: %v", filtered)
	}
}

func TestApplyBatchLocalIDs(t *testing.T) {
	// Both batches answer id 0; each id must resolve within its own
	// batch, not globally.
	client := &fakeClient{responses: []string{
		`[{"id":0,"include":true},{"id":1,"include":false}]`,
		`[{"id":0,"include":true}]`,
	}}
	f := NewFilter(client, nil)

	records := createTestRecords("Реализация №1", "Реализация №2", "Реализация №3")
	filtered, err := f.Apply(context.Background(), records, &Options{
		ExpenseKeywords: []string{"реализация"},
		BatchSize:       2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 records, got %d", len(filtered))
	}
	if filtered[0].Text != "Реализация №1" || filtered[1].Text != "Реализация №3" {
		t.Errorf("unexpected records: %q, %q", filtered[0].Text, filtered[1].Text)
	}
	if client.calls != 2 {
		t.Errorf("expected 2 batches, got %d", client.calls)
	}

	var firstBatch []map[string]interface{}
	if err := json.Unmarshal([]byte(client.payloads[0]), &firstBatch); err != nil {
		t.Fatalf("first payload is not JSON: %v", err)
	}
	if len(firstBatch) != 2 {
		t.Errorf("expected 2 items in first batch, got %d", len(firstBatch))
	}
}

func TestApplyBatchFailureAborts(t *testing.T) {
	client := &fakeClient{errs: []error{fmt.Errorf("service unavailable")}}
	f := NewFilter(client, nil)

	records := createTestRecords("Реализация №1")
	if _, err := f.Apply(context.Background(), records, nil); err == nil {
		t.Fatal("expected error when a batch fails")
	}
}

func TestApplyWithoutClient(t *testing.T) {
	f := NewFilter(nil, nil)
	if _, err := f.Apply(context.Background(), createTestRecords("Акт №1"), nil); err == nil {
		t.Fatal("expected configuration error without a client")
	}
}
