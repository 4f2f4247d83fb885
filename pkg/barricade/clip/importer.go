package clip

import (
	"context"
	"fmt"

	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/himanishpuri/barricade/pkg/utils"
)

// Importer copies clips from a Source into a Store under a fresh unique name.
type Importer struct {
	store Store
	log   *logger.Logger
}

func NewImporter(store Store, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Importer{store: store, log: log}
}

func (im *Importer) Store() Store {
	return im.store
}

// Import persists the clip and returns its reference, "<uuid>.<ext>".
func (im *Importer) Import(ctx context.Context, src Source) (string, error) {
	const op errors.Op = "clip.Import"

	r, name, contentType, err := src.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.E(op, errors.Canceled, ctx.Err())
		}
		return "", errors.E(op, errors.ImportError, fmt.Errorf("opening source: %w", err))
	}
	defer r.Close()

	if !IsVideo(name, contentType) {
		return "", errors.E(op, errors.ImportError, errors.Info(name),
			fmt.Sprintf("not a video (content type %q)", contentType))
	}

	ref := utils.UniqueFilename(name)
	if err := im.store.Save(ctx, ref, r); err != nil {
		if ctx.Err() != nil {
			return "", errors.E(op, errors.Canceled, ctx.Err())
		}
		return "", errors.E(op, errors.ImportError, errors.ID(ref), err)
	}

	im.log.Infof("imported clip %s as %s", name, ref)
	return ref, nil
}
