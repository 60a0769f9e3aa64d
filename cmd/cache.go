package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"pulsefm/config"

	"github.com/spf13/cobra"
)

var (
	cacheList      bool
	cachePruneDays int
	cacheClear     bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and prune the audio cache",
	Long:  `Shows what the station has cached on disk. By default prints summary statistics; use the flags to list individual files, prune tracks that have not been touched in a while, or clear the cache entirely.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("Audio cache directory: %s\n", cfg.AudioDir)

		entries, err := os.ReadDir(cfg.AudioDir)
		if err != nil {
			log.Fatalf("Cannot read audio cache directory: %v", err)
		}

		type cachedFile struct {
			name    string
			size    int64
			modTime time.Time
		}
		var files []cachedFile
		var totalSize int64
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				log.Fatalf("Cannot stat %s: %v", entry.Name(), err)
			}
			files = append(files, cachedFile{entry.Name(), info.Size(), info.ModTime()})
			totalSize += info.Size()
		}

		switch {
		case cacheClear:
			fmt.Printf("\nClearing %d cached file(s)...\n", len(files))
			for _, f := range files {
				if err := os.Remove(filepath.Join(cfg.AudioDir, f.name)); err != nil {
					log.Fatalf("Cannot remove %s: %v", f.name, err)
				}
			}
			fmt.Printf("Cache cleared, %s freed.\n", formatSize(totalSize))

		case cachePruneDays > 0:
			cutoff := time.Now().AddDate(0, 0, -cachePruneDays)
			fmt.Printf("\nPruning files untouched since %s...\n", cutoff.Format("2006-01-02"))
			removed, freed := 0, int64(0)
			for _, f := range files {
				if f.modTime.After(cutoff) {
					continue
				}
				if err := os.Remove(filepath.Join(cfg.AudioDir, f.name)); err != nil {
					log.Fatalf("Cannot remove %s: %v", f.name, err)
				}
				removed++
				freed += f.size
			}
			fmt.Printf("Removed %d file(s), %s freed, %d kept.\n",
				removed, formatSize(freed), len(files)-removed)

		case cacheList:
			fmt.Printf("\n%d cached file(s):\n", len(files))
			sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })
			for _, f := range files {
				fmt.Printf("  %-10s %s  %s\n",
					formatSize(f.size), f.modTime.Format("2006-01-02 15:04"), f.name)
			}
			fmt.Printf("Total: %s\n", formatSize(totalSize))

		default:
			fmt.Printf("\nCached files: %d\n", len(files))
			fmt.Printf("Total size:   %s\n", formatSize(totalSize))
			if len(files) > 0 {
				oldest, newest := files[0].modTime, files[0].modTime
				for _, f := range files[1:] {
					if f.modTime.Before(oldest) {
						oldest = f.modTime
					}
					if f.modTime.After(newest) {
						newest = f.modTime
					}
				}
				fmt.Printf("Oldest file:  %s\n", oldest.Format("2006-01-02 15:04"))
				fmt.Printf("Newest file:  %s\n", newest.Format("2006-01-02 15:04"))
			}
		}
	},
}

// formatSize renders a byte count in human units.
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.Flags().BoolVarP(&cacheList, "list", "l", false, "list every cached file with size and age")
	cacheCmd.Flags().IntVarP(&cachePruneDays, "prune-days", "p", 0, "remove files not touched in the given number of days")
	cacheCmd.Flags().BoolVarP(&cacheClear, "clear", "c", false, "remove every cached file")

	cacheCmd.Example = `  # show cache statistics
  pulsefm cache

  # list cached files, newest first
  pulsefm cache -l

  # remove everything untouched for 90 days
  pulsefm cache -p 90

  # wipe the cache
  pulsefm cache -c`
}
