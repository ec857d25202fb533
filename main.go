package main

import (
	"github.com/asistente-voz/vozterm/cmd"
)

func main() {
	cmd.Execute()
}
