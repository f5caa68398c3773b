package metadata

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/tliron/commonlog"
)

const DefinitionAddress string = "https://api.nuget.org/v3/index.json"
const DefaultNugetName string = "microsoft.windows.sdk.win32metadata"

// Downloader fetches a metadata file out of a NuGet package.
type Downloader struct {
	// IndexURL is the NuGet service index; DefinitionAddress when empty.
	IndexURL string
	// Package is the lower-cased NuGet package id.
	Package string
	// Constraint restricts the selected version, e.g. ">= 60.0, < 70.0".
	// The newest version is taken when empty.
	Constraint string
	// Extension is the extension of the archive entry to extract, ".winmd" by default.
	Extension string
	Client    *http.Client
}

var log = commonlog.GetLogger("codebinder.metadata")

// DownloadMetadata fetches the newest (or newest satisfying) package version and
// writes its metadata entry to metadataFileName. It returns the chosen version.
func (d *Downloader) DownloadMetadata(ctx context.Context, metadataFileName string) (string, error) {
	baseAddress, err := d.getBaseAddress(ctx)
	if err != nil {
		return "", err
	}

	name := d.Package
	if name == "" {
		name = DefaultNugetName
	}
	versionsResponse, err := d.queryGet(ctx, fmt.Sprintf("%s%s/index.json", baseAddress, name))
	if err != nil {
		return "", fmt.Errorf("listing versions of %s: %w", name, err)
	}
	versions, err := parse[map[string][]string](versionsResponse)
	if err != nil {
		return "", fmt.Errorf("parsing versions of %s: %w", name, err)
	}

	chosen, err := SelectVersion(versions["versions"], d.Constraint)
	if err != nil {
		return "", fmt.Errorf("package %s: %w", name, err)
	}
	log.Infof("downloading %s %s", name, chosen)

	nugetBytes, err := d.queryGet(ctx, fmt.Sprintf("%s%s/%s/%s.%s.nupkg", baseAddress, name, chosen, name, chosen))
	if err != nil {
		return "", fmt.Errorf("downloading %s %s: %w", name, chosen, err)
	}

	extension := d.Extension
	if extension == "" {
		extension = ".winmd"
	}
	bytesReader := bytes.NewReader(nugetBytes)
	nuget, err := zip.NewReader(bytesReader, int64(bytesReader.Len()))
	if err != nil {
		return "", fmt.Errorf("opening package %s: %w", name, err)
	}
	for _, file := range nuget.File {
		if !strings.EqualFold(filepath.Ext(file.Name), extension) {
			continue
		}
		reader, err := file.Open()
		if err != nil {
			return "", err
		}
		metadataBytes, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return "", fmt.Errorf("extracting %s: %w", file.Name, err)
		}
		if err := os.WriteFile(metadataFileName, metadataBytes, 0o644); err != nil {
			return "", err
		}
		return chosen, nil
	}
	return "", fmt.Errorf("package %s %s contains no %s file", name, chosen, extension)
}

// SelectVersion returns the original spelling of the highest version that
// satisfies constraint. An empty constraint accepts everything.
func SelectVersion(available []string, constraint string) (string, error) {
	var constraints version.Constraints
	if constraint != "" {
		parsed, err := version.NewConstraint(constraint)
		if err != nil {
			return "", fmt.Errorf("invalid version constraint %q: %w", constraint, err)
		}
		constraints = parsed
	}

	orderedVersions := make([]*version.Version, 0, len(available))
	for _, versionString := range available {
		v, err := version.NewVersion(versionString)
		if err != nil {
			return "", fmt.Errorf("error parsing version: %s", versionString)
		}
		if constraints != nil && !constraints.Check(v) {
			continue
		}
		orderedVersions = append(orderedVersions, v)
	}
	if len(orderedVersions) == 0 {
		return "", fmt.Errorf("no version satisfies %q", constraint)
	}

	sort.Sort(version.Collection(orderedVersions))
	return orderedVersions[len(orderedVersions)-1].Original(), nil
}

func (d *Downloader) getBaseAddress(ctx context.Context) (string, error) {
	indexURL := d.IndexURL
	if indexURL == "" {
		indexURL = DefinitionAddress
	}
	response, err := d.queryGet(ctx, indexURL)
	if err != nil {
		return "", fmt.Errorf("reading service index: %w", err)
	}
	nugetIndex, err := parse[nugetIndex](response)
	if err != nil {
		return "", fmt.Errorf("parsing service index: %w", err)
	}

	for _, resource := range nugetIndex.Resources {
		if strings.Contains(resource.Type, "PackageBaseAddress") {
			return resource.Id, nil
		}
	}
	return "", fmt.Errorf("service index %s has no PackageBaseAddress resource", indexURL)
}

func parse[T interface{}](source []byte) (T, error) {
	var parsedBody T
	err := json.Unmarshal(source, &parsedBody)
	return parsedBody, err
}

func (d *Downloader) queryGet(ctx context.Context, url string) ([]byte, error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}

	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, response.Status)
	}

	return io.ReadAll(response.Body)
}

type nugetIndex struct {
	Resources []nugetResource `json:"resources"`
}

type nugetResource struct {
	Id   string `json:"@id"`
	Type string `json:"@type"`
}
