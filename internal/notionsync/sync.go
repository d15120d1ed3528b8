// Package notionsync mirrors stored ledger entries and bill files into
// Notion databases.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"github.com/jomei/notionapi"
)

// SyncStats counts what one sync did, or would do in dry-run mode.
type SyncStats struct {
	Created int
	Updated int
	Deleted int
	Skipped int
	Failed  int
}

// SyncEntries mirrors entries dated within [startDate, endDate] into the
// Notion database. Pages are keyed by the "Entry ID" property:
//  1. pages for entries that no longer exist (superseded runs) are archived,
//     as are pages with no entry id; pages dated outside the range are left
//     alone
//  2. entries without a page are created; existing pages are skipped
//
// Individual page failures are logged and counted, not returned.
func SyncEntries(ctx context.Context, repo store.EntryRepository, notionClient NotionService, notionDBID string, startDate, endDate time.Time, dryRun bool) (*SyncStats, error) {
	log := logger.FromContext(ctx)
	stats := &SyncStats{}

	log.Info().
		Time("start_date", startDate).
		Time("end_date", endDate).
		Bool("dry_run", dryRun).
		Msg("Starting entry sync to Notion")

	entries, err := repo.QueryEntriesByDateRange(ctx, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("SyncEntries: query entries: %w", err)
	}
	log.Info().Int("entry_count", len(entries)).Msg("Retrieved entries")

	validEntryIDs := make(map[string]bool, len(entries))
	for _, e := range entries {
		validEntryIDs[e.EntryID] = true
	}

	notionPages, err := queryPages(ctx, notionClient, notionDBID, entryPagesFilter(startDate, endDate))
	if err != nil {
		return nil, fmt.Errorf("SyncEntries: %w", err)
	}
	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]bool, len(notionPages))
	for _, page := range notionPages {
		entryID := pageText(page, PropEntryID)
		if entryID != "" && validEntryIDs[entryID] {
			existing[entryID] = true
			continue
		}
		if entryID != "" && !withinDays(page, startDate, endDate) {
			continue
		}
		archivePage(ctx, notionClient, page, entryID, dryRun, stats)
	}

	for _, e := range entries {
		if existing[e.EntryID] {
			stats.Skipped++
			continue
		}

		if dryRun {
			log.Info().Str("entry_id", e.EntryID).Msg("[DRY RUN] Would create Notion page")
			stats.Created++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, EntryToNotionProperties(e))
		if err != nil {
			log.Warn().Err(err).Str("entry_id", e.EntryID).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		log.Debug().Str("entry_id", e.EntryID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("deleted", stats.Deleted).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Int("total", len(entries)).
		Msg("Entry sync completed")

	return stats, nil
}

// SyncBillFiles mirrors every bill file into the Notion database keyed by
// the "File ID" title. Existing pages are updated since a file's status and
// entry count change after parsing; pages for unknown files are archived.
func SyncBillFiles(ctx context.Context, repo store.BillFileRepository, notionClient NotionService, notionDBID string, dryRun bool) (*SyncStats, error) {
	log := logger.FromContext(ctx)
	stats := &SyncStats{}

	files, err := repo.ListBillFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("SyncBillFiles: list bill files: %w", err)
	}

	notionPages, err := queryPages(ctx, notionClient, notionDBID, nil)
	if err != nil {
		return nil, fmt.Errorf("SyncBillFiles: %w", err)
	}

	valid := make(map[string]bool, len(files))
	for _, f := range files {
		valid[f.FileID] = true
	}

	pageByFile := make(map[string]string, len(notionPages))
	for _, page := range notionPages {
		fileID := pageText(page, PropFileID)
		if fileID != "" && valid[fileID] {
			pageByFile[fileID] = string(page.ID)
			continue
		}
		archivePage(ctx, notionClient, page, fileID, dryRun, stats)
	}

	for _, f := range files {
		pageID, found := pageByFile[f.FileID]

		if dryRun {
			if found {
				log.Info().Str("file_id", f.FileID).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				stats.Updated++
			} else {
				log.Info().Str("file_id", f.FileID).Msg("[DRY RUN] Would create Notion page")
				stats.Created++
			}
			continue
		}

		props := BillFileToNotionProperties(f)
		if found {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("file_id", f.FileID).Str("page_id", pageID).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
			continue
		}

		if _, err := notionClient.CreatePage(ctx, notionDBID, props); err != nil {
			log.Warn().Err(err).Str("file_id", f.FileID).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("deleted", stats.Deleted).
		Int("failed", stats.Failed).
		Int("total", len(files)).
		Msg("Bill file sync completed")

	return stats, nil
}

func archivePage(ctx context.Context, notionClient NotionService, page notionapi.Page, key string, dryRun bool, stats *SyncStats) {
	log := logger.FromContext(ctx)

	if dryRun {
		log.Info().Str("key", key).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would delete stale Notion page")
		stats.Deleted++
		return
	}

	if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
		log.Warn().Err(err).Str("key", key).Str("page_id", string(page.ID)).Msg("Failed to delete stale Notion page")
		stats.Failed++
		return
	}
	log.Info().Str("key", key).Str("page_id", string(page.ID)).Msg("Deleted stale Notion page")
	stats.Deleted++
}

// withinDays reports whether the page's Date falls in [start, end] by
// calendar day. Undated pages count as inside.
func withinDays(page notionapi.Page, start, end time.Time) bool {
	d, ok := pageDate(page, PropDate)
	if !ok {
		return true
	}
	day := d.Format("2006-01-02")
	return day >= start.Format("2006-01-02") && day <= end.Format("2006-01-02")
}
