// Command gulpwatch counts sips from a bottle or cup seen by the webcam.
package main

func main() {
	Execute()
}
