package kommander

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaFS holds one JSON schema per recognised notification kind, named
// after NotificationKind.String().
//
//go:embed schemas/*.json
var schemaFS embed.FS

// notificationSchemas validates recognised notification bodies before they
// reach the state cache.
type notificationSchemas struct {
	byKind map[NotificationKind]*jsonschema.Schema
}

// loadNotificationSchemas compiles the embedded schemas.
func loadNotificationSchemas() (*notificationSchemas, error) {
	c := jsonschema.NewCompiler()
	s := &notificationSchemas{byKind: make(map[NotificationKind]*jsonschema.Schema)}

	for _, kind := range notificationKinds {
		name := "schemas/" + kind.String() + ".json"
		data, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parsing schema %s: %w", name, err)
		}
		if err := c.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("adding schema %s: %w", name, err)
		}
		sch, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", name, err)
		}
		s.byKind[kind] = sch
	}
	return s, nil
}

// validate checks a recognised notification. Kinds without a schema pass.
func (s *notificationSchemas) validate(n Notification) error {
	sch, ok := s.byKind[n.Kind]
	if !ok {
		return nil
	}
	if err := sch.Validate(n.Value); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedNotification, n.Tag, err)
	}
	return nil
}
