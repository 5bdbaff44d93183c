package negotiation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

// FormatClientHeader builds a Storefront-Client value.
// Format: name="storefront-go", version="v0.3.0" (RFC 8941 Dictionary).
func FormatClientHeader(name, version string) (string, error) {
	dict := httpsfv.NewDictionary()
	dict.Add("name", httpsfv.NewItem(name))
	dict.Add("version", httpsfv.NewItem(version))
	return httpsfv.Marshal(dict)
}

// FormatAPIHeader builds a Storefront-API value: version="v1.4.0".
func FormatAPIHeader(version string) (string, error) {
	dict := httpsfv.NewDictionary()
	dict.Add("version", httpsfv.NewItem(version))
	return httpsfv.Marshal(dict)
}

// ParseClientHeader extracts name and version from Storefront-Client.
// Name is optional; version is required.
//
// Examples:
//   - name="storefront-go", version="v0.3.0" → {storefront-go v0.3.0}
//   - version="1.2.0";build=7               → {"" 1.2.0} (params ignored)
func ParseClientHeader(header string) (ClientInfo, error) {
	dict, err := parseDictionary(ClientHeader, header)
	if err != nil {
		return ClientInfo{}, err
	}

	version, err := stringMember(dict, "version")
	if err != nil {
		return ClientInfo{}, fmt.Errorf("%s: %w", ClientHeader, err)
	}

	info := ClientInfo{Version: version}
	if name, err := stringMember(dict, "name"); err == nil {
		info.Name = name
	}
	return info, nil
}

// ParseAPIHeader extracts the version from Storefront-API.
func ParseAPIHeader(header string) (string, error) {
	dict, err := parseDictionary(APIHeader, header)
	if err != nil {
		return "", err
	}
	version, err := stringMember(dict, "version")
	if err != nil {
		return "", fmt.Errorf("%s: %w", APIHeader, err)
	}
	return version, nil
}

func parseDictionary(name, header string) (*httpsfv.Dictionary, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("empty %s header", name)
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return nil, fmt.Errorf("invalid %s header: %w", name, err)
	}
	return dict, nil
}

func stringMember(dict *httpsfv.Dictionary, key string) (string, error) {
	member, ok := dict.Get(key)
	if !ok {
		return "", fmt.Errorf("%s key not found", key)
	}

	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", errors.New(key + " value must be an item")
	}

	s, ok := item.Value.(string)
	if !ok {
		return "", errors.New(key + " value must be a string")
	}
	return s, nil
}
