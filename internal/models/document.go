package models

// Resume is the normalized output of the document parser. Content is
// markdown-like text whose `#`, `##` and `###` headings drive chunking.
type Resume struct {
	Filename string
	Content  string
	Meta     map[string]interface{}
}

// Empty reports whether parsing produced no usable text.
func (r *Resume) Empty() bool {
	return r == nil || len(r.Content) == 0
}

// JobPosting is a job description fetched from a URL.
type JobPosting struct {
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}
