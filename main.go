package main

import "github.com/ValentinKolb/idemkv/cmd"

func main() {
	cmd.Execute()
}
