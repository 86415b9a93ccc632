package screen

// MaxHashDistance is the perceptual-hash Hamming distance at or below which
// two grabs count as the same screen.
const MaxHashDistance = 2
