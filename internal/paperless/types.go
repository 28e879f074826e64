package paperless

import "time"

// BasicUser is the abbreviated user object Paperless embeds in notes.
type BasicUser struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// Note is a free-text note attached to a document. This system reuses
// notes as opaque storage for encoded annotations.
type Note struct {
	ID      int64     `json:"id"`
	Note    string    `json:"note"`
	Created time.Time `json:"created"`
	User    BasicUser `json:"user"`
}

// CustomFieldInstance is a per-document value of a custom field.
type CustomFieldInstance struct {
	Field int64 `json:"field"`
	Value any   `json:"value"`
}

// CustomField is a global custom field definition.
type CustomField struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	DataType      string `json:"data_type"`
	ExtraData     any    `json:"extra_data,omitempty"`
	DocumentCount int    `json:"document_count"`
}

// Document is a Paperless document. Read-only from this system's
// perspective except for its custom field instances.
type Document struct {
	ID                  int64                 `json:"id"`
	Correspondent       *int64                `json:"correspondent"`
	DocumentType        *int64                `json:"document_type"`
	StoragePath         *int64                `json:"storage_path"`
	Title               *string               `json:"title"`
	Tags                []int64               `json:"tags"`
	Created             *string               `json:"created"`
	Modified            *time.Time            `json:"modified"`
	Added               *time.Time            `json:"added"`
	ArchiveSerialNumber *int64                `json:"archive_serial_number"`
	OriginalFileName    *string               `json:"original_file_name"`
	ArchivedFileName    *string               `json:"archived_file_name"`
	Owner               *int64                `json:"owner"`
	Notes               []Note                `json:"notes"`
	CustomFields        []CustomFieldInstance `json:"custom_fields"`
	PageCount           *int                  `json:"page_count"`
	MimeType            *string               `json:"mime_type"`
}

// paginated response envelopes.
type documentPage struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []Document `json:"results"`
}

type customFieldPage struct {
	Count    int           `json:"count"`
	Next     *string       `json:"next"`
	Previous *string       `json:"previous"`
	Results  []CustomField `json:"results"`
}
