package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"partita/internal/fileutil"
	"partita/internal/imslp"
	"partita/internal/logging"
	"partita/internal/objectstore"
	"partita/internal/store"
)

// VerifyReference checks a revision's raw upload against the PDF files
// hosted on a catalogue page. A digest match marks the revision verified
// and caches the matched reference metadata in the aux bucket; no match
// marks it a mismatch. Lookup failures leave the state untouched.
func (s *Service) VerifyReference(ctx context.Context, revisionID, pageTitle string, resolver imslp.Client) (store.ValidationState, error) {
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return "", err
	}

	rawKey := fmt.Sprintf("%s/%s/%s/%s", rev.WorkID, rev.SourceID, rev.ID, safeName(rev.Filename))
	data, err := s.objects.Get(ctx, objectstore.BucketRaw, rawKey)
	if err != nil {
		return "", err
	}

	files, err := resolver.ReferenceFiles(ctx, pageTitle)
	if err != nil {
		return "", err
	}

	state := store.ValidationMismatch
	if match := imslp.MatchSHA1(files, fileutil.SHA1Hex(data)); match != nil {
		state = store.ValidationVerified
		if err := s.cacheReference(ctx, rev, match); err != nil {
			s.log.Warn("cache reference metadata", logging.Error(err))
		}
	}

	if err := s.store.SetValidation(ctx, revisionID, state); err != nil {
		return "", err
	}
	s.log.Info("reference verification",
		logging.FieldWorkID, rev.WorkID,
		logging.FieldSourceID, rev.SourceID,
		logging.FieldRevisionID, rev.ID,
		"state", string(state))
	return state, nil
}

func (s *Service) cacheReference(ctx context.Context, rev *store.Revision, match *imslp.ReferenceFile) error {
	blob, err := json.MarshalIndent(match, "", "  ")
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s/%s/%d/reference.json", rev.WorkID, rev.SourceID, rev.Seq)
	_, err = s.objects.Put(ctx, objectstore.BucketAux, key, blob, "application/json")
	return err
}
