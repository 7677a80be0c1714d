package types

// TenderInfo is the tender card shown to the user, assembled from the
// TenderGuru export response.
type TenderInfo struct {
	RegNumber string `json:"reg_number"`
	Customer  string `json:"customer"`
	Subject   string `json:"subject"`
	Price     string `json:"price"`
	Deadline  string `json:"deadline"`
	Region    string `json:"region"`
}

// Platform is one entry of the TenderGuru trading-platform directory.
type Platform struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Document is a single attachment of a tender.
type Document struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size string `json:"size"`
}
