package cmd

import (
	"fmt"
)

const banner = `
   _____          _   ______ _
  / ____|        | | |  ____| |
 | |     ___ _ __| |_| |__  | |_   ___  __
 | |    / _ \ '__| __|  __| | | | | \ \/ /
 | |___|  __/ |  | |_| |    | | |_| |>  <
  \_____\___|_|   \__|_|    |_|\__,_/_/\_\

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Certificate Issuance Service - Version %s\x1b[0m\n\n", Version)
}
