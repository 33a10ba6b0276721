package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"babel/internal/services"
)

func TestEventWireShape(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"initiate", Initiate("config.json", "Xenova/nllb-200-distilled-600M", 0), `{"status":"initiate","file":"config.json","name":"Xenova/nllb-200-distilled-600M"}`},
		{"progress zero", ProgressUpdate("model.bin", 0, 0, 0), `{"status":"progress","file":"model.bin","progress":0}`},
		{"progress", ProgressUpdate("model.bin", 40, 400, 1000), `{"status":"progress","file":"model.bin","progress":40,"loaded":400,"total":1000}`},
		{"done", Done("model.bin"), `{"status":"done","file":"model.bin"}`},
		{"ready", Ready(), `{"status":"ready"}`},
		{"empty update", Update(""), `{"status":"update","output":""}`},
		{"complete", Complete("J'adore promener mon chien.").WithRequest("r1"), `{"status":"complete","request_id":"r1","output":"J'adore promener mon chien."}`},
		{"error", Failure("busy", "queue full"), `{"status":"error","kind":"busy","message":"queue full"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("got %s, want %s", data, tt.want)
			}
			var back Event
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if back != tt.event {
				t.Fatalf("round trip = %+v, want %+v", back, tt.event)
			}
		})
	}
}

func TestRequestWireShape(t *testing.T) {
	var r Request
	if err := json.Unmarshal([]byte(`{"text":"I love walking my dog.","src_lang":"eng_Latn","tgt_lang":"fra_Latn"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Text != "I love walking my dog." || r.SourceLanguage != "eng_Latn" || r.TargetLanguage != "fra_Latn" || r.ID != "" {
		t.Fatalf("unexpected request %+v", r)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		ok   bool
	}{
		{"valid", Request{Text: "hi", SourceLanguage: "eng_Latn", TargetLanguage: "fra_Latn"}, true},
		{"blank text", Request{Text: "  \n", SourceLanguage: "eng_Latn", TargetLanguage: "fra_Latn"}, false},
		{"missing target", Request{Text: "hi", SourceLanguage: "eng_Latn"}, false},
	}
	for _, tt := range tests {
		err := tt.req.Validate()
		if (err == nil) != tt.ok {
			t.Fatalf("%s: Validate() = %v", tt.name, err)
		}
		if err != nil && !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tt.name, err)
		}
	}
}

func TestEventValidate(t *testing.T) {
	bad := []Event{
		{Status: "loading"},
		{Status: StatusProgress},
		{Status: StatusError, Message: "no kind"},
	}
	for _, e := range bad {
		if err := e.Validate(); err == nil {
			t.Fatalf("expected %+v to be rejected", e)
		}
	}
	good := []Event{Ready(), Update(""), Complete("x"), Done("f"), Failure("load", "x")}
	for _, e := range good {
		if err := e.Validate(); err != nil {
			t.Fatalf("unexpected error for %+v: %v", e, err)
		}
	}
}

func TestFailureFromError(t *testing.T) {
	err := services.Wrap(services.ErrBusy, "worker", "enqueue", "queue full", nil)
	e := FailureFromError(err)
	if e.Status != StatusError || e.Kind != services.KindBusy || e.Message != err.Error() {
		t.Fatalf("unexpected event %+v", e)
	}
}
