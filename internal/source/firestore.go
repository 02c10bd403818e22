package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	firestore "google.golang.org/api/firestore/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"github.com/theirongolddev/salesdash/internal/model"
)

const (
	defaultDatabase = "(default)"
	defaultPageSize = 300
	defaultEndpoint = "https://firestore.googleapis.com/"
)

// FirestoreConfig locates the series collection.
type FirestoreConfig struct {
	ProjectID  string
	Database   string // defaults to "(default)"
	Collection string
	APIKey     string
	// Endpoint overrides the service URL, e.g. "http://localhost:8080/" for the emulator.
	Endpoint string
	PageSize int64
}

// Firestore reads the series from a Firestore collection over the REST API,
// ordered ascending by the date field.
type Firestore struct {
	client     *http.Client
	listURL    string
	collection string
	pageSize   int64
	dec        Decoder
}

// NewFirestore creates a Firestore source. Extra client options are appended
// after the ones derived from cfg.
func NewFirestore(ctx context.Context, cfg FirestoreConfig, dec Decoder, opts ...option.ClientOption) (*Firestore, error) {
	cfg.ProjectID = strings.TrimSpace(cfg.ProjectID)
	if cfg.ProjectID == "" {
		return nil, errors.New("source: firestore project id is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("source: firestore collection is required")
	}
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}

	endpoint := defaultEndpoint
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
	}
	base := []option.ClientOption{
		option.WithEndpoint(endpoint),
		option.WithScopes(firestore.DatastoreScope),
	}
	switch {
	case cfg.APIKey != "":
		base = append(base, option.WithAPIKey(cfg.APIKey))
	case cfg.Endpoint != "":
		base = append(base, option.WithoutAuthentication())
	}

	client, endpoint, err := htransport.NewClient(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("source: creating firestore client: %w", err)
	}

	parent := fmt.Sprintf("projects/%s/databases/%s/documents", cfg.ProjectID, cfg.Database)
	return &Firestore{
		client:     client,
		listURL:    strings.TrimSuffix(endpoint, "/") + "/v1/" + parent + "/" + url.PathEscape(cfg.Collection),
		collection: cfg.Collection,
		pageSize:   cfg.PageSize,
		dec:        dec.withDefaults(),
	}, nil
}

// listPage is a ListDocumentsResponse with each field left undecoded.
// A decoded firestore.Value cannot tell stringValue "" or booleanValue false
// from an omitted doubleValue.
type listPage struct {
	Documents []struct {
		Name   string                     `json:"name"`
		Fields map[string]json.RawMessage `json:"fields"`
	} `json:"documents"`
	NextPageToken string `json:"nextPageToken"`
}

// Fetch lists every document in the collection.
func (f *Firestore) Fetch(ctx context.Context) ([]model.SalesRecord, error) {
	var records []model.SalesRecord

	token := ""
	for {
		page, err := f.list(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("source: listing %s: %w", f.collection, err)
		}
		for _, doc := range page.Documents {
			rec, err := f.decodeDocument(len(records), doc.Fields)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if page.NextPageToken == "" {
			return records, nil
		}
		token = page.NextPageToken
	}
}

func (f *Firestore) list(ctx context.Context, token string) (*listPage, error) {
	q := url.Values{}
	q.Set("alt", "json")
	q.Set("prettyPrint", "false")
	q.Set("orderBy", f.dec.DateField+" asc")
	q.Set("pageSize", strconv.FormatInt(f.pageSize, 10))
	if token != "" {
		q.Set("pageToken", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.listURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, err
	}

	var page listPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding page: %w", err)
	}
	return &page, nil
}

func (f *Firestore) decodeDocument(index int, fields map[string]json.RawMessage) (model.SalesRecord, error) {
	var date string
	if raw, ok := fields[f.dec.DateField]; ok {
		date = documentDate(decodeField(raw))
	}

	value, rawValue, verr := math.NaN(), "", ErrMissingValue
	if raw, ok := fields[f.dec.ValueField]; ok {
		value, rawValue, verr = documentNumber(decodeField(raw))
	}

	return f.dec.Record(index, date, value, rawValue, verr)
}

// field is a decoded Value plus the name of the member the server sent.
type field struct {
	kind string
	v    firestore.Value
	raw  string
}

func decodeField(raw json.RawMessage) field {
	fd := field{raw: string(raw)}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil || len(members) != 1 {
		return fd
	}
	if err := json.Unmarshal(raw, &fd.v); err != nil {
		return fd
	}
	for k := range members {
		fd.kind = k
	}
	return fd
}

// documentNumber reads integer, double and numeric string fields.
func documentNumber(fd field) (float64, string, error) {
	switch fd.kind {
	case "integerValue":
		return float64(fd.v.IntegerValue), strconv.FormatInt(fd.v.IntegerValue, 10), nil
	case "doubleValue":
		return fd.v.DoubleValue, strconv.FormatFloat(fd.v.DoubleValue, 'g', -1, 64), nil
	case "stringValue":
		f, err := ParseValueString(fd.v.StringValue)
		return f, fd.v.StringValue, err
	case "nullValue":
		return math.NaN(), "null", ErrMissingValue
	default:
		return math.NaN(), fd.raw, ErrNotNumeric
	}
}

// documentDate accepts string dates and timestamp fields.
func documentDate(fd field) string {
	switch fd.kind {
	case "stringValue":
		return fd.v.StringValue
	case "timestampValue":
		t, err := time.Parse(time.RFC3339Nano, fd.v.TimestampValue)
		if err != nil {
			return fd.v.TimestampValue
		}
		return t.UTC().Format(model.DateLayout)
	}
	return ""
}
