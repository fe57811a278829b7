package libraries

import (
	"context"
	"fmt"
	"os"

	"github.com/juju/loggo"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

var logger = loggo.GetLogger("galaxy-admin.libraries")

// Uploader adds datasets to library folders.
type Uploader interface {
	API
	UploadFile(ctx context.Context, libraryID, folderID, path string, opts galaxy.UploadOptions) ([]galaxy.Dataset, error)
	AddServerPaths(ctx context.Context, libraryID, folderID string, paths []string, opts galaxy.UploadOptions) ([]galaxy.Dataset, error)
}

// AddDatasets puts files into the folder at dest. Local files are checked
// before anything is sent and uploaded one by one; with fromServer the
// paths are read by Galaxy itself in a single request.
func AddDatasets(ctx context.Context, api Uploader, dest string, files []string, fromServer bool, opts galaxy.UploadOptions) ([]galaxy.Dataset, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to add")
	}
	loc, err := Resolve(ctx, api, dest)
	if err != nil {
		return nil, err
	}

	if fromServer {
		logger.Debugf("adding %d server paths to %s", len(files), loc.Path)
		return api.AddServerPaths(ctx, loc.Library.ID, loc.FolderID, files, opts)
	}

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", f)
		}
	}

	var added []galaxy.Dataset
	for _, f := range files {
		logger.Infof("uploading %s to %s", f, loc.Path)
		ds, err := api.UploadFile(ctx, loc.Library.ID, loc.FolderID, f, opts)
		if err != nil {
			return added, fmt.Errorf("failed to upload %s: %w", f, err)
		}
		added = append(added, ds...)
	}
	return added, nil
}
