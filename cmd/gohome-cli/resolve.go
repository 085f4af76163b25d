package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joshp123/gohome-tfiac/internal/api"
	"github.com/joshp123/gohome-tfiac/internal/entries"
)

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	replacer := strings.NewReplacer(" ", "_", "-", "_")
	name = replacer.Replace(name)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return name
}

func resolveNamedID(kind, input string, options map[string]string) (string, error) {
	needle := normalizeName(input)
	for label, id := range options {
		if normalizeName(label) == needle {
			return id, nil
		}
	}
	available := make([]string, 0, len(options))
	for label := range options {
		available = append(available, label)
	}
	sort.Strings(available)
	return "", fmt.Errorf("%s %q not found. Available: %s", kind, input, strings.Join(available, ", "))
}

// resolveEntity accepts a unique ID or an entity name such as
// "living room".
func resolveEntity(s *session, input string) (string, error) {
	resp, err := call[api.ListEntitiesResponse](s, api.ClimateServiceName, "ListEntities", &api.ListEntitiesRequest{})
	if err != nil {
		return "", fmt.Errorf("list entities: %w", err)
	}
	options := make(map[string]string, len(resp.Entities))
	for _, state := range resp.Entities {
		if state.UniqueID == input {
			return input, nil
		}
		options[state.Name] = state.UniqueID
	}
	return resolveNamedID("climate entity", input, options)
}

// resolveEntry accepts an entry ID or an entry title.
func resolveEntry(s *session, input string) (entries.Entry, error) {
	resp, err := call[api.ListEntriesResponse](s, api.EntriesServiceName, "ListEntries", &api.ListEntriesRequest{})
	if err != nil {
		return entries.Entry{}, fmt.Errorf("list entries: %w", err)
	}
	options := make(map[string]string, len(resp.Entries))
	byID := make(map[string]entries.Entry, len(resp.Entries))
	for _, entry := range resp.Entries {
		if entry.EntryID == input {
			return entry, nil
		}
		options[entry.Title] = entry.EntryID
		byID[entry.EntryID] = entry
	}
	id, err := resolveNamedID("config entry", input, options)
	if err != nil {
		return entries.Entry{}, err
	}
	return byID[id], nil
}
