package configstore

// ConfigStore loads a document into out. out is usually a pointer to a
// struct or to a map[string]any.
type ConfigStore interface {
	Load(out any) error
}
