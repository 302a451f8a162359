// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// session_archive_dump inspects the Pantry session archive.
//
// The archive persists snapshots of idle-evicted sessions in BadgerDB so a
// returning user finds their cart where they left it. This tool opens the
// archive read-only and prints a human-readable summary: session IDs, TTL
// remaining, cart lines with subtotals, accumulated preferences, and turn
// counts.
//
// Usage:
//
//	session_archive_dump [--path /path/to/session/archive]
//
// If --path is not given, reads SESSION_ARCHIVE_DIR from the environment.
//
// Exit codes:
//
//	0 — success (including "empty archive" which prints a message and exits 0)
//	1 — error opening or reading the database
package main

import (
	"bytes"
	"encoding/gob"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/PantryFOSS/services/pantry/session"
)

// sessionKeyPrefix must match session_archive.go exactly.
const sessionKeyPrefix = "session/v1/"

func main() {
	pathFlag := flag.String("path", "", "Path to session archive BadgerDB directory (overrides SESSION_ARCHIVE_DIR env var)")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("SESSION_ARCHIVE_DIR")
	}
	if dbPath == "" {
		fatalf("no archive path: pass --path or set SESSION_ARCHIVE_DIR")
	}

	fmt.Printf("Session archive path: %s\n", dbPath)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Archive directory does not exist. No sessions have been archived yet.")
		os.Exit(0)
	}

	opts := dgbadger.DefaultOptions(dbPath).
		WithLogger(nil).
		WithReadOnly(true)

	db, err := dgbadger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	type entry struct {
		key       string
		sessionID string
		expiresAt time.Time
		hasExpiry bool
		snap      *session.Snapshot
		rawSize   int
		decodeErr error
	}

	var entries []entry

	err = db.View(func(txn *dgbadger.Txn) error {
		iterOpts := dgbadger.DefaultIteratorOptions
		iterOpts.PrefetchValues = true
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())

			var e entry
			e.key = key
			e.sessionID = strings.TrimPrefix(key, sessionKeyPrefix)

			// TTL: item.ExpiresAt() returns Unix seconds, 0 = no expiry.
			if expiresAt := item.ExpiresAt(); expiresAt > 0 {
				e.hasExpiry = true
				e.expiresAt = time.Unix(int64(expiresAt), 0)
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				e.decodeErr = fmt.Errorf("copy value: %w", err)
				entries = append(entries, e)
				continue
			}
			e.rawSize = len(raw)

			var snap session.Snapshot
			if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
				e.decodeErr = fmt.Errorf("gob decode: %w", err)
			} else {
				e.snap = &snap
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}

	if len(entries) == 0 {
		fmt.Println("\nNo archived sessions found.")
		os.Exit(0)
	}

	fmt.Printf("\nFound %d archived session%s:\n", len(entries), plural(len(entries)))
	fmt.Println(strings.Repeat("─", 80))

	for i, e := range entries {
		fmt.Printf("\n[%d] Session:  %s\n", i+1, e.sessionID)

		if e.hasExpiry {
			remaining := time.Until(e.expiresAt)
			if remaining < 0 {
				fmt.Printf("    TTL:      EXPIRED (%s ago)\n", (-remaining).Round(time.Second))
			} else {
				fmt.Printf("    TTL:      %s remaining (expires %s)\n",
					remaining.Round(time.Second),
					e.expiresAt.Format("2006-01-02 15:04:05 MST"),
				)
			}
		} else {
			fmt.Printf("    TTL:      no expiry set\n")
		}

		fmt.Printf("    Raw size: %d bytes\n", e.rawSize)

		if e.decodeErr != nil {
			fmt.Printf("    DECODE ERROR: %v\n", e.decodeErr)
			continue
		}

		snap := e.snap
		if snap.UserID != "" {
			fmt.Printf("    User:     %s\n", snap.UserID)
		}
		fmt.Printf("    Idle since: %s\n", snap.LastActivity.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("    Turns:    %d retained\n", len(snap.Turns))

		if len(snap.Preferences) > 0 {
			fmt.Printf("    Preferences:\n")
			for k, v := range snap.Preferences {
				fmt.Printf("      %s: %s\n", k, v)
			}
		}

		if len(snap.CartLines) == 0 {
			fmt.Printf("    Cart:     empty\n")
			continue
		}
		fmt.Printf("    Cart:     %d line%s\n", len(snap.CartLines), plural(len(snap.CartLines)))
		var total float64
		for _, line := range snap.CartLines {
			fmt.Printf("      %dx %-40s  $%7.2f\n", line.Quantity, line.Name, line.Subtotal())
			total += line.Subtotal()
		}
		fmt.Printf("      %-43s  $%7.2f\n", "total", total)
	}

	fmt.Printf("\n%s\n", strings.Repeat("─", 80))
	fmt.Printf("Summary: %d session%s, archive path: %s\n", len(entries), plural(len(entries)), dbPath)
}

// plural returns "s" when n != 1.
func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "session_archive_dump: "+format+"\n", args...)
	os.Exit(1)
}
