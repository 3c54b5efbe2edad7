package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/young1lin/postfetch/internal/config"
	"github.com/young1lin/postfetch/internal/fetcher"
	"github.com/young1lin/postfetch/internal/models"
	"github.com/young1lin/postfetch/internal/storage"
	"github.com/young1lin/postfetch/pkg/logger"
)

type fetchOptions struct {
	Provider string
	Model    string
	Archive  bool
}

// runFetch performs one fetch and writes the outcome for the operator.
// Failures are reported on stderr and returned as errReported.
func runFetch(ctx context.Context, cfg *config.Config, opts fetchOptions, postURL string, stdout, stderr io.Writer) error {
	reqCfg, err := cfg.RequestConfig(opts.Provider, opts.Model)
	if err != nil {
		writeConfigProblems(stderr, err)
		return errReported
	}

	requestID := newRequestID()
	ctx = logger.ContextWithRequestID(ctx, requestID)
	log := logger.WithRequestID(requestID)

	log.Info("fetching post",
		zap.String("url", postURL),
		zap.String("provider", reqCfg.Profile.Name),
		zap.String("model", reqCfg.Profile.Model(reqCfg.Model)),
	)

	start := time.Now()
	result, err := fetcher.NewExecutor(nil).Execute(ctx, reqCfg, postURL)

	log.Info("fetch finished",
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Bool("ok", err == nil),
	)

	if opts.Archive {
		archiveFetch(cfg.Archive.Path, requestID, reqCfg, postURL, result, err, log)
	}

	if err != nil {
		writeFailure(stderr, reqCfg.Profile.Label, err)
		return errReported
	}

	writeResult(stdout, result.Text, result.Citations)
	return nil
}

// writeResult prints the extracted content followed by its citations
func writeResult(w io.Writer, text string, citations []models.Citation) {
	fmt.Fprintln(w, text)

	if len(citations) == 0 {
		return
	}
	fmt.Fprintln(w, "\n--- Citations ---")
	for _, c := range citations {
		fmt.Fprintf(w, "- %s: %s\n", c.Title, c.URL)
	}
}

// writeFailure prints one diagnostic line plus whatever raw context the
// failure carries
func writeFailure(w io.Writer, label string, err error) {
	var fe *fetcher.Error
	if !errors.As(err, &fe) {
		writeDiagnostic(w, fetcher.Describe(label, err), "", "")
		return
	}
	writeDiagnostic(w, fetcher.Describe(label, fe), fe.Kind.String(), fe.Detail)
}

// writeDiagnostic renders a failure from its parts so archived fetches print
// exactly what the live run printed
func writeDiagnostic(w io.Writer, line, kind, detail string) {
	fmt.Fprintln(w, line)
	if detail == "" {
		return
	}

	switch kind {
	case fetcher.APIError.String():
		fmt.Fprintf(w, "Full response: %s\n", detail)
	case fetcher.MalformedResponse.String():
		fmt.Fprintf(w, "Raw response: %s\n", detail)
	default:
		fmt.Fprintf(w, "Response: %s\n", detail)
	}
}

func writeConfigProblems(w io.Writer, err error) {
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		fmt.Fprintln(w, "Error:", err)
		return
	}

	fmt.Fprintln(w, "Error: invalid configuration")
	for _, p := range verr.Problems {
		fmt.Fprintf(w, "  %s: %s\n", p.Key, p.Reason)
	}
}

func archiveFetch(path, requestID string, reqCfg fetcher.RequestConfig, postURL string, result *fetcher.Result, fetchErr error, log *zap.Logger) {
	var fe *fetcher.Error
	if errors.As(fetchErr, &fe) && fe.Kind == fetcher.InvalidInput {
		return
	}

	archive, err := storage.NewArchive(path)
	if err != nil {
		log.Warn("archive unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	defer archive.Close()

	record := &models.ArchivedFetch{
		ID:        requestID,
		URL:       postURL,
		Provider:  reqCfg.Profile.Name,
		Model:     reqCfg.Profile.Model(reqCfg.Model),
		FetchedAt: time.Now().UTC(),
	}
	if result != nil {
		record.Text = result.Text
		record.Citations = result.Citations
	}
	if fe != nil {
		record.ErrorKind = fe.Kind.String()
		record.Error = fetcher.Describe(reqCfg.Profile.Label, fe)
		record.Detail = fe.Detail
	} else if fetchErr != nil {
		record.ErrorKind = "unknown"
		record.Error = fetchErr.Error()
	}

	if err := archive.Save(record); err != nil {
		log.Warn("failed to archive fetch", zap.Error(err))
		return
	}
	log.Debug("fetch archived", zap.String("id", requestID))
}

// newRequestID returns a time-ordered ID so archive keys sort by fetch time
func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
