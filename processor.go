// FILE: lixenwraith/confbind/processor.go
package confbind

// ValueRecord is the mutable record handed through the processor chain between lookup and conversion.
type ValueRecord struct {
	// Key is the source key that resolved the value, empty when it came from a default.
	Key                string
	Value              Value
	FromDefault        bool
	EncryptionProvider string
	Attributes         Attributes
}

// IsEncrypted reports whether a provider still has to process the value.
func (r *ValueRecord) IsEncrypted() bool { return r.EncryptionProvider != "" }

// ValueProcessor rewrites a record in place, e.g. decrypting tagged values.
type ValueProcessor interface {
	Process(rec *ValueRecord) error
}

// ProcessorFunc adapts a function to ValueProcessor.
type ProcessorFunc func(rec *ValueRecord) error

func (f ProcessorFunc) Process(rec *ValueRecord) error { return f(rec) }

// runProcessors applies the chain in order, stopping at the first error.
func runProcessors(chain []ValueProcessor, rec *ValueRecord) error {
	for _, p := range chain {
		if err := p.Process(rec); err != nil {
			return err
		}
	}
	return nil
}
