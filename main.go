package main

import "github.com/deptfile/file-management/cmd"

func main() {
	cmd.Execute()
}
