package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"chat-hub/domain"
	"chat-hub/repositories"
)

// Debug CLI to inspect what actually sits in the Badger store:
//
//	go run ./tools -db ./data/badger -prefix msg:
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, user:, community:, notif:)")
	limit := flag.Int("limit", 50, "Maximum rows to print")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Owner", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes) && rows < *limit; it.Next() {
			item := it.Item()
			key := string(item.Key())

			// The id index duplicates the primary rows, skip it.
			if strings.HasPrefix(key, "msgid:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				table.Append(describe(key, v))
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	color.Cyan.Printf("Scanned prefix %q, %d rows\n\n", *prefix, rows)
	table.Render()
}

// describe decodes a value according to its key prefix and flattens it
// into one table row. A value that fails to decode is reported, not
// fatal.
func describe(key string, value []byte) []string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var msg domain.Message
		if err := json.Unmarshal(value, &msg); err != nil {
			return corrupt(key, err)
		}
		return []string{key, color.Green.Sprint("MESSAGE"), msg.CreatedAt.Format(time.RFC3339),
			string(msg.SenderID), truncate(msg.Content, 60)}

	case strings.HasPrefix(key, "user:"):
		var user domain.User
		if err := json.Unmarshal(value, &user); err != nil {
			return corrupt(key, err)
		}
		return []string{key, color.Blue.Sprint("USER"), user.LastSeen.Format(time.RFC3339),
			string(user.ID), fmt.Sprintf("%s (%s)", user.DisplayName, user.Status)}

	case strings.HasPrefix(key, "community:"):
		var community repositories.Community
		if err := json.Unmarshal(value, &community); err != nil {
			return corrupt(key, err)
		}
		return []string{key, color.Magenta.Sprint("COMMUNITY"), "",
			community.ID, fmt.Sprintf("%s, %d members, active=%v", community.Name, len(community.Members), community.IsActive)}

	case strings.HasPrefix(key, "notif:"):
		var notification domain.Notification
		if err := json.Unmarshal(value, &notification); err != nil {
			return corrupt(key, err)
		}
		return []string{key, color.Yellow.Sprint("NOTIFICATION"), notification.CreatedAt.Format(time.RFC3339),
			string(notification.UserID), fmt.Sprintf("[%s] %s", notification.Kind, notification.Title)}

	default:
		return []string{key, "RAW", "", "", truncate(string(value), 60)}
	}
}

func corrupt(key string, err error) []string {
	return []string{key, color.Red.Sprint("CORRUPT"), "", "", err.Error()}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
