package extraction

// Document is an image chosen by the user for extraction
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Result contains the fields the extraction service located in a document.
// Fields the service could not find are left empty.
type Result struct {
	Name           string `json:"name"`
	DocumentNumber string `json:"documentNumber"`
	ExpirationDate string `json:"expirationDate"`
}
