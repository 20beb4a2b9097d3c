package workflow

import "math/rand/v2"

var samplePrompts = []string{
	"a majestic dragon soaring through stormy clouds",
	"a cyberpunk cityscape with neon lights at night",
	"a peaceful zen garden with cherry blossoms",
	"a steampunk airship floating above Victorian London",
	"a mystical forest with glowing mushrooms and fairies",
	"a futuristic robot playing chess with a human",
	"a vintage car driving through a desert sunset",
	"a magical castle floating on clouds",
	"a pirate ship sailing through a cosmic nebula",
	"a cozy cabin in a snowy mountain landscape",
	"an underwater city with mermaids and coral reefs",
	"a samurai warrior meditating under a waterfall",
	"a space station orbiting a distant planet",
	"a medieval knight riding a mechanical horse",
	"a phoenix rising from flames in an ancient temple",
	"a time traveler's workshop filled with clockwork gadgets",
	"a giant tree house in an enchanted forest",
	"an alien marketplace on a distant moon",
	"a lighthouse keeper's cottage during a thunderstorm",
	"a crystal cave with rainbow reflections and gems",
}

// RandomPrompt picks one of the built-in sample prompts used for load tests.
func RandomPrompt() string {
	return samplePrompts[rand.IntN(len(samplePrompts))]
}
