package cmd

import (
	"fmt"
	"log"
	"time"

	"pulsefm/config"
	"pulsefm/core/promo"
	"pulsefm/db"
	"pulsefm/model"
	"pulsefm/repository"

	"github.com/spf13/cobra"
)

var (
	promoList        bool
	promoTitle       string
	promoPromoter    string
	promoDescription string
	promoFile        string
	promoFrom        string
	promoTo          string
)

var promoCmd = &cobra.Command{
	Use:   "promo",
	Short: "Manage promotional audio breaks",
	Long:  `Registers promotional audio clips for the station to air between songs, or lists the ones already scheduled. Adding a promotion moves the audio file into the station's promo directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("Cannot connect to the database: %v", err)
		}
		if err := db.AutoMigrateModels(&model.Promotion{}); err != nil {
			log.Fatalf("Cannot migrate the promotions table: %v", err)
		}
		repo := repository.NewGormPromoRepository()

		if promoList {
			promos, err := repo.All()
			if err != nil {
				log.Fatalf("Cannot list promotions: %v", err)
			}
			if len(promos) == 0 {
				fmt.Println("No promotions scheduled.")
				return
			}
			now := time.Now()
			fmt.Printf("%d promotion(s):\n", len(promos))
			for _, p := range promos {
				state := "scheduled"
				if p.Expired(now) {
					state = "expired"
				} else if p.ActiveAt(now) {
					state = "active"
				}
				fmt.Printf("  #%d %q by %s\n", p.ID, p.Title, p.Promoter)
				fmt.Printf("     window %s to %s (%s), played %d time(s)\n",
					p.ActiveFrom.Format("2006-01-02 15:04"),
					p.ActiveTo.Format("2006-01-02 15:04"),
					state, p.PlayCount)
			}
			return
		}

		if promoTitle == "" || promoFile == "" || promoFrom == "" || promoTo == "" {
			log.Fatal("Adding a promotion requires --title, --file, --from and --to")
		}
		from := parsePromoTime(promoFrom, "from")
		to := parsePromoTime(promoTo, "to")
		if !to.After(from) {
			log.Fatal("--to must be after --from")
		}

		mgr, err := promo.NewManager(repo, cfg.PromoDir, cfg.PromoInterval)
		if err != nil {
			log.Fatalf("Cannot open the promo directory: %v", err)
		}
		p, err := mgr.Add(promoTitle, promoPromoter, promoDescription, from, to, promoFile)
		if err != nil {
			log.Fatalf("Cannot add the promotion: %v", err)
		}

		fmt.Printf("Promotion #%d %q scheduled from %s to %s.\n",
			p.ID, p.Title,
			p.ActiveFrom.Format("2006-01-02 15:04"),
			p.ActiveTo.Format("2006-01-02 15:04"))
		fmt.Printf("Audio stored at %s\n", p.FilePath)
	},
}

// parsePromoTime accepts a date or a date with minutes, in local time.
func parsePromoTime(value, flagName string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t
		}
	}
	log.Fatalf("Cannot parse --%s %q, want YYYY-MM-DD or \"YYYY-MM-DD HH:MM\"", flagName, value)
	return time.Time{}
}

func init() {
	rootCmd.AddCommand(promoCmd)

	promoCmd.Flags().BoolVarP(&promoList, "list", "l", false, "list scheduled promotions instead of adding one")
	promoCmd.Flags().StringVarP(&promoTitle, "title", "t", "", "promotion title")
	promoCmd.Flags().StringVarP(&promoPromoter, "promoter", "p", "", "who booked the promotion")
	promoCmd.Flags().StringVarP(&promoDescription, "description", "d", "", "free-form note about the promotion")
	promoCmd.Flags().StringVarP(&promoFile, "file", "f", "", "path to the promo audio file (moved into the promo directory)")
	promoCmd.Flags().StringVar(&promoFrom, "from", "", "start of the airing window")
	promoCmd.Flags().StringVar(&promoTo, "to", "", "end of the airing window")

	promoCmd.Example = `  # list scheduled promotions
  pulsefm promo -l

  # schedule a spot for a week
  pulsefm promo -t "Summer Fest" -p "City Events" -f ./spot.mp3 --from 2026-07-01 --to 2026-07-08

  # schedule with an exact window
  pulsefm promo -t "Morning Show Teaser" -f teaser.mp3 --from "2026-07-01 06:00" --to "2026-07-01 10:00"`
}
