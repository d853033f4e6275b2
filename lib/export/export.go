// Package export flattens a user's synchronized ratings into CSV. It is
// a pure read of the store; no remote calls happen here.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"log/slog"

	"github.com/mswiatek/filmweb-backup/lib/store"
)

var header = []string{"title", "year", "rate", "favorite", "view_date", "genres"}

// WriteCSV writes one row per stored rating of userID: display title,
// year, the user's rate, favorite flag, view date and the comma-joined
// genre names.
func WriteCSV(ctx context.Context, s *store.Store, userID int64, w io.Writer) error {
	rows, err := s.RatingsWithMovies(ctx, userID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		genres := make([]string, len(row.Movie.Genres))
		for i, g := range row.Movie.Genres {
			genres[i] = g.Name
		}

		record := []string{
			row.Movie.DisplayTitle(),
			strconv.Itoa(row.Movie.Year),
			strconv.Itoa(row.Rating.Rate),
			strconv.FormatBool(row.Rating.Favorite),
			strconv.Itoa(row.Rating.ViewDate),
			strings.Join(genres, ", "),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// ToFile writes the export to path, replacing any previous file.
func ToFile(ctx context.Context, s *store.Store, userID int64, path string, logger *slog.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Error("failed to close export file", slog.Any("error", err))
		}
	}()

	if err := WriteCSV(ctx, s, userID, f); err != nil {
		return err
	}
	logger.Info("Wrote export", slog.String("path", path), slog.Int64("user_id", userID))
	return nil
}
