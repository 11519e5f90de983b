// Command quiz runs, serves and checks questionnaire flows.
package main

func main() {
	Execute()
}
