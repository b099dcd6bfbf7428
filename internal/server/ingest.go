package server

import (
	"context"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/formscan/internal/common"
)

// IngestPath ingests {path, force?, directory?, skip_hidden?} and queues new
// documents. With directory=true the path is walked recursively.
func (s *DocumentServer) IngestPath(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Ingest == nil {
		return nil, common.InternalError("ingest is not configured")
	}
	path := strings.TrimSpace(stringField(req, "path"))
	if err := common.ValidateAndReturnError(common.NewValidator().Field("path", path, common.Required)); err != nil {
		s.logger.Error("ingest request rejected", "error", err)
		return nil, err
	}
	force := boolField(req, "force")

	if boolField(req, "directory") {
		skipHidden := true
		if v, ok := req.GetFields()["skip_hidden"]; ok {
			skipHidden = v.GetBoolValue()
		}
		s.logger.Info("starting directory ingest", "root", path, "skip_hidden", skipHidden)
		res, err := s.deps.Ingest.IngestDirectory(ctx, path, skipHidden, force)
		if err != nil {
			return nil, err
		}
		return toStruct(res)
	}

	s.logger.Info("starting file ingest", "path", path)
	r, err := s.deps.Ingest.IngestFile(ctx, path, force)
	if err != nil {
		return nil, err
	}
	s.logger.Info("file ingest succeeded", "document_id", r.DocumentID, "deduplicated", r.Deduplicated)
	return toStruct(r)
}
