package tap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/saturnines/tap-govdata/pkg/config"
	"github.com/saturnines/tap-govdata/pkg/errors"
	"github.com/saturnines/tap-govdata/pkg/singer"
)

const (
	parkingIRI = "https://data.gov.cz/zdroj/datové-sady/mesto/parking"
	airIRI     = "https://data.gov.cz/zdroj/datové-sady/mesto/air"
	unknownIRI = "https://data.gov.cz/zdroj/datové-sady/mesto/missing"
)

var iriPattern = regexp.MustCompile(`iri: "([^"]+)"`)

// newTapServer fakes the full catalog surface: GraphQL metadata for two
// datasets plus their schema and data endpoints. It counts every request
// it serves.
func newTapServer(t *testing.T, requests *int64) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	dataset := func(iri, title, suffix string) map[string]interface{} {
		return map[string]interface{}{
			"iri":                iri,
			"title":              map[string]interface{}{"cs": title},
			"description":        map[string]interface{}{"cs": "Popis"},
			"accrualPeriodicity": nil,
			"documentation":      nil,
			"isPartOf":           nil,
			"distribution": []interface{}{
				map[string]interface{}{
					"accessURL":  server.URL + "/data-" + suffix + ".csv",
					"conformsTo": server.URL + "/schema-" + suffix,
				},
			},
		}
	}

	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		var gqlReq map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&gqlReq); err != nil {
			t.Errorf("Failed to parse GraphQL request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		query, _ := gqlReq["query"].(string)
		match := iriPattern.FindStringSubmatch(query)
		if match == nil {
			t.Errorf("Query does not embed an IRI: %s", query)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var node map[string]interface{}
		switch match[1] {
		case parkingIRI:
			node = dataset(parkingIRI, "Volná parkovací místa", "parking")
		case airIRI:
			node = dataset(airIRI, "Kvalita ovzduší", "air")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"dataset": node},
		})
	})

	schema := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"tableSchema": {
				"primaryKey": "id",
				"columns": [
					{"name": "id", "titles": "ID", "required": true, "datatype": "string"},
					{"name": "value", "titles": "Value", "required": false, "datatype": "number"}
				]
			}
		}`)
	}
	mux.HandleFunc("/schema-parking", schema)
	mux.HandleFunc("/schema-air", schema)

	mux.HandleFunc("/data-parking.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, "id,value\np1,10\np2,20\n")
	})
	mux.HandleFunc("/data-air.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, "id,value\na1,1.5\n")
	})

	counting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			atomic.AddInt64(requests, 1)
		}
		mux.ServeHTTP(w, r)
	})

	server = httptest.NewServer(counting)
	t.Cleanup(server.Close)
	return server
}

func newTestTap(t *testing.T, server *httptest.Server, iris []string) *Tap {
	t.Helper()
	tp, err := New(&config.Settings{
		IRIs:           iris,
		Endpoint:       server.URL + "/graphql",
		TimeoutSeconds: 10,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tp
}

// decodeMessages splits Singer output into decoded message lines.
func decodeMessages(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var messages []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var msg map[string]interface{}
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			t.Fatalf("Failed to decode message %q: %v", line, err)
		}
		messages = append(messages, msg)
	}
	return messages
}

func streamOf(msg map[string]interface{}) string {
	stream, _ := msg["stream"].(string)
	return stream
}

func TestTap_Discover(t *testing.T) {
	server := newTapServer(t, nil)
	tp := newTestTap(t, server, []string{parkingIRI, airIRI})

	catalog, err := tp.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(catalog.Streams) != 3 {
		t.Fatalf("Expected 3 streams, got %d", len(catalog.Streams))
	}
	if catalog.Streams[0].TapStreamID != MetadataStreamID {
		t.Errorf("Expected metadata stream first, got %q", catalog.Streams[0].TapStreamID)
	}
	if catalog.Streams[1].TapStreamID != "volna_parkovaci_mista" {
		t.Errorf("Unexpected document stream id: %q", catalog.Streams[1].TapStreamID)
	}
	if catalog.Streams[2].TapStreamID != "kvalita_ovzdusi" {
		t.Errorf("Unexpected document stream id: %q", catalog.Streams[2].TapStreamID)
	}

	entry := catalog.Streams[1]
	if got := entry.Metadata[0].Metadata[datasetIRIMetadataKey]; got != parkingIRI {
		t.Errorf("Expected IRI in stream metadata, got %v", got)
	}
	if len(entry.KeyProperties) != 1 || entry.KeyProperties[0] != "id" {
		t.Errorf("Expected key properties [id], got %v", entry.KeyProperties)
	}
	if !entry.IsSelected() {
		t.Error("Expected discovered streams to default to selected")
	}
}

func TestTap_Discover_UnknownIRI(t *testing.T) {
	server := newTapServer(t, nil)
	tp := newTestTap(t, server, []string{parkingIRI, unknownIRI})

	catalog, err := tp.Discover(context.Background())
	if err == nil {
		t.Fatal("Expected error for unknown IRI, got nil")
	}
	if !strings.Contains(err.Error(), unknownIRI) {
		t.Errorf("Expected error to name the failing IRI, got: %v", err)
	}

	// The resolvable streams still make it into the catalog.
	if catalog == nil || len(catalog.Streams) != 2 {
		t.Fatalf("Expected partial catalog with 2 streams, got %+v", catalog)
	}
	if catalog.Streams[1].TapStreamID != "volna_parkovaci_mista" {
		t.Errorf("Unexpected surviving stream: %q", catalog.Streams[1].TapStreamID)
	}
}

func TestTap_Discover_MetadataOnly(t *testing.T) {
	server := newTapServer(t, nil)
	includeDocuments := false
	tp, err := New(&config.Settings{
		IRIs:             []string{parkingIRI},
		Endpoint:         server.URL + "/graphql",
		TimeoutSeconds:   10,
		IncludeDocuments: &includeDocuments,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	catalog, err := tp.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(catalog.Streams) != 1 || catalog.Streams[0].TapStreamID != MetadataStreamID {
		t.Errorf("Expected only the metadata stream, got %+v", catalog.Streams)
	}
}

func TestTap_Sync(t *testing.T) {
	server := newTapServer(t, nil)
	tp := newTestTap(t, server, []string{airIRI, parkingIRI})

	var buf bytes.Buffer
	if err := tp.Sync(context.Background(), singer.NewWriter(&buf), nil, nil); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	messages := decodeMessages(t, &buf)

	// Metadata records come first, in config order.
	if messages[0]["type"] != singer.MessageTypeSchema || streamOf(messages[0]) != MetadataStreamID {
		t.Fatalf("Expected metadata SCHEMA first, got %v", messages[0])
	}
	var metadataIRIs []string
	for _, msg := range messages {
		if msg["type"] == singer.MessageTypeRecord && streamOf(msg) == MetadataStreamID {
			record := msg["record"].(map[string]interface{})
			metadataIRIs = append(metadataIRIs, record["iri"].(string))
		}
	}
	if len(metadataIRIs) != 2 || metadataIRIs[0] != airIRI || metadataIRIs[1] != parkingIRI {
		t.Errorf("Expected metadata records in config order, got %v", metadataIRIs)
	}

	recordCounts := map[string]int{}
	schemaCounts := map[string]int{}
	for _, msg := range messages {
		switch msg["type"] {
		case singer.MessageTypeRecord:
			recordCounts[streamOf(msg)]++
		case singer.MessageTypeSchema:
			schemaCounts[streamOf(msg)]++
		}
	}
	if recordCounts["kvalita_ovzdusi"] != 1 {
		t.Errorf("Expected 1 air record, got %d", recordCounts["kvalita_ovzdusi"])
	}
	if recordCounts["volna_parkovaci_mista"] != 2 {
		t.Errorf("Expected 2 parking records, got %d", recordCounts["volna_parkovaci_mista"])
	}
	if schemaCounts["kvalita_ovzdusi"] != 1 || schemaCounts["volna_parkovaci_mista"] != 1 {
		t.Errorf("Expected one SCHEMA per document stream, got %v", schemaCounts)
	}

	last := messages[len(messages)-1]
	if last["type"] != singer.MessageTypeState {
		t.Fatalf("Expected final STATE message, got %v", last)
	}
	bookmarks := last["value"].(map[string]interface{})["bookmarks"].(map[string]interface{})
	for _, stream := range []string{MetadataStreamID, "kvalita_ovzdusi", "volna_parkovaci_mista"} {
		if _, ok := bookmarks[stream]; !ok {
			t.Errorf("Expected bookmark for %s, got %v", stream, bookmarks)
		}
	}
}

func TestTap_Sync_UnknownIRI(t *testing.T) {
	server := newTapServer(t, nil)
	tp := newTestTap(t, server, []string{parkingIRI, unknownIRI})

	var buf bytes.Buffer
	err := tp.Sync(context.Background(), singer.NewWriter(&buf), nil, nil)
	if err == nil {
		t.Fatal("Expected error for unknown IRI, got nil")
	}
	if !strings.Contains(err.Error(), unknownIRI) {
		t.Errorf("Expected error to name the failing IRI, got: %v", err)
	}

	messages := decodeMessages(t, &buf)

	// The resolvable IRI still produces its records.
	records := 0
	for _, msg := range messages {
		if msg["type"] == singer.MessageTypeRecord {
			records++
		}
	}
	if records != 3 { // 1 metadata + 2 parking rows
		t.Errorf("Expected 3 records from the surviving IRI, got %d", records)
	}

	// A failed run still closes with STATE.
	if last := messages[len(messages)-1]; last["type"] != singer.MessageTypeState {
		t.Errorf("Expected final STATE message, got %v", last)
	}
}

func TestTap_Sync_CancelledContext(t *testing.T) {
	server := newTapServer(t, nil)
	tp := newTestTap(t, server, []string{parkingIRI, airIRI})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := tp.Sync(ctx, singer.NewWriter(&buf), nil, nil)
	if err == nil {
		t.Fatal("Expected error for cancelled context, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled on the chain, got: %v", err)
	}

	// Cancellation aborts the run instead of degrading into per-IRI
	// failures; no STATE is written.
	if strings.Contains(buf.String(), singer.MessageTypeState) {
		t.Errorf("Expected no STATE after cancellation, got: %s", buf.String())
	}
}

func TestTap_Sync_DeselectedStream(t *testing.T) {
	server := newTapServer(t, nil)
	tp := newTestTap(t, server, []string{parkingIRI, airIRI})

	catalog, err := tp.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	for i := range catalog.Streams {
		if catalog.Streams[i].TapStreamID == "volna_parkovaci_mista" {
			catalog.Streams[i].Metadata = singer.NewStreamMetadata(false)
		}
	}

	var buf bytes.Buffer
	if err := tp.Sync(context.Background(), singer.NewWriter(&buf), catalog, nil); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	for _, msg := range decodeMessages(t, &buf) {
		if streamOf(msg) == "volna_parkovaci_mista" {
			t.Fatalf("Expected deselected stream to stay silent, got %v", msg)
		}
	}
}

func TestTap_Sync_CarriesState(t *testing.T) {
	server := newTapServer(t, nil)
	tp := newTestTap(t, server, []string{parkingIRI})

	state := map[string]interface{}{
		"bookmarks": map[string]interface{}{
			"older_stream": map[string]interface{}{"completed_at": "2023-01-01T00:00:00Z"},
		},
	}

	var buf bytes.Buffer
	if err := tp.Sync(context.Background(), singer.NewWriter(&buf), nil, state); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	messages := decodeMessages(t, &buf)
	last := messages[len(messages)-1]
	bookmarks := last["value"].(map[string]interface{})["bookmarks"].(map[string]interface{})
	if _, ok := bookmarks["older_stream"]; !ok {
		t.Errorf("Expected incoming bookmarks to be preserved, got %v", bookmarks)
	}
	if _, ok := bookmarks[MetadataStreamID]; !ok {
		t.Errorf("Expected fresh bookmark for %s, got %v", MetadataStreamID, bookmarks)
	}
}

func TestMalformedConfig_FailsBeforeNetwork(t *testing.T) {
	var requests int64
	server := newTapServer(t, &requests)

	loader := config.NewDefaultLoader()
	raw := []byte(fmt.Sprintf(`{"endpoint": %q}`, server.URL+"/graphql"))
	if _, err := loader.Parse(raw, config.FormatJSON); err == nil {
		t.Fatal("Expected error for config without iris, got nil")
	}

	if n := atomic.LoadInt64(&requests); n != 0 {
		t.Errorf("Expected no catalog requests for malformed config, got %d", n)
	}
}
