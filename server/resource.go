package server

import (
	"fmt"
	"strconv"
	"strings"
)

// ResourceKind identifies what a request path addresses.
type ResourceKind int

const (
	ResourceUnknown ResourceKind = iota
	ResourceCollection
	ResourceEvent
	ResourceInvitation
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceCollection:
		return "Collection"
	case ResourceEvent:
		return "Event"
	case ResourceInvitation:
		return "Invitation"
	default:
		return "Unknown"
	}
}

// Format is a representation a resource can be rendered in.
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatICS  Format = "ics"
)

// Resource is a parsed request path.
type Resource struct {
	Kind    ResourceKind
	EventID int64
	// Status is the answer of an invitation path.
	Status string
	// Format is the explicit suffix of an event path, if any.
	Format Format
	URI    string
}

// URLConverter defines the URL path convention of the API.
//
// If you set a prefix on the handler, initialize the converter with the same
// prefix, like DefaultURLConverter does.
type URLConverter interface {
	// ParsePath parses a given path and returns the corresponding Resource.
	ParsePath(path string) (Resource, error)
	// EncodePath encodes a Resource back to its URL path representation.
	EncodePath(resource Resource) (string, error)
}

const collectionSegment = "calendarevents"

// DefaultURLConverter implements URLConverter with the structure:
//
//   - Collection: /calendarevents
//   - Event: /calendarevents/<id>[.json|.xml|.ics]
//   - Invitation: /calendarevents/<id>/invitation/<status>
//
// The Prefix field is prepended to all paths (e.g., "/api/rest/latest/").
type DefaultURLConverter struct {
	Prefix string
}

// ParsePath parses a path with or without the configured prefix.
func (c *DefaultURLConverter) ParsePath(path string) (Resource, error) {
	resource := Resource{Kind: ResourceUnknown, URI: path}

	path = strings.TrimPrefix(path, c.Prefix)
	var segments []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			segments = append(segments, p)
		}
	}

	if len(segments) == 0 || segments[0] != collectionSegment {
		return resource, fmt.Errorf("invalid path: expected '/%s', got '/%s'", collectionSegment, path)
	}

	switch len(segments) {
	case 1:
		resource.Kind = ResourceCollection

	case 2:
		id, format, err := parseEventSegment(segments[1])
		if err != nil {
			return resource, err
		}
		resource.EventID = id
		resource.Format = format
		resource.Kind = ResourceEvent

	case 4:
		if segments[2] != "invitation" {
			return resource, fmt.Errorf("invalid path: expected 'invitation', got '%s'", segments[2])
		}
		id, err := parseID(segments[1])
		if err != nil {
			return resource, err
		}
		resource.EventID = id
		resource.Status = segments[3]
		resource.Kind = ResourceInvitation

	default:
		return resource, fmt.Errorf("invalid path: unexpected number of segments (%d)", len(segments))
	}

	return resource, nil
}

func parseEventSegment(seg string) (int64, Format, error) {
	base, ext, hasExt := strings.Cut(seg, ".")
	var format Format
	if hasExt {
		switch f := Format(strings.ToLower(ext)); f {
		case FormatJSON, FormatXML, FormatICS:
			format = f
		default:
			return 0, "", fmt.Errorf("unsupported format '%s'", ext)
		}
	}
	id, err := parseID(base)
	return id, format, err
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid event id '%s'", s)
	}
	return id, nil
}

// EncodePath encodes a Resource into a path under the configured prefix.
func (c *DefaultURLConverter) EncodePath(resource Resource) (string, error) {
	var path string

	switch resource.Kind {
	case ResourceCollection:
		path = collectionSegment

	case ResourceEvent:
		if resource.EventID <= 0 {
			return "", fmt.Errorf("invalid resource: event must have an id")
		}
		path = collectionSegment + "/" + strconv.FormatInt(resource.EventID, 10)
		if resource.Format != "" {
			path += "." + string(resource.Format)
		}

	case ResourceInvitation:
		if resource.EventID <= 0 || resource.Status == "" {
			return "", fmt.Errorf("invalid resource: invitation must have an event id and a status")
		}
		path = collectionSegment + "/" + strconv.FormatInt(resource.EventID, 10) + "/invitation/" + resource.Status

	default:
		return "", fmt.Errorf("invalid resource kind: %s", resource.Kind)
	}

	prefix := c.Prefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + path, nil
}
