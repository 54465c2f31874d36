// Package grocery holds grocery-domain helpers shared by the handlers.
package grocery

import "strings"

const Other = "Other"

// Categorize returns the category for a grocery item name. The longest
// keyword contained in the lower-cased name wins, so "peanut butter" lands in
// Pantry rather than Dairy. Names with no matching keyword are Other.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return Other
	}

	best, bestLen := Other, 0
	for _, group := range keywords {
		for _, kw := range group.words {
			if len(kw) > bestLen && strings.Contains(name, kw) {
				best, bestLen = group.category, len(kw)
			}
		}
	}
	return best
}

var keywords = []struct {
	category string
	words    []string
}{
	{"Produce", []string{
		"apple", "banana", "orange", "lemon", "lime", "avocado", "tomato", "potato",
		"onion", "garlic", "lettuce", "spinach", "kale", "broccoli", "carrot",
		"celery", "cucumber", "pepper", "mushroom", "grape", "berry", "berries",
		"melon", "pineapple", "mango", "peach", "pear", "cilantro", "basil",
		"parsley", "ginger", "zucchini", "asparagus", "green beans", "cabbage",
		"cauliflower", "squash", "romaine", "arugula", "salad mix", "fruit", "herb",
	}},
	{"Dairy", []string{
		"milk", "cheese", "butter", "yogurt", "cream", "egg", "sour cream",
		"cream cheese", "cottage cheese", "half and half", "almond milk", "oat milk",
	}},
	{"Meat & Seafood", []string{
		"chicken", "beef", "pork", "turkey", "bacon", "sausage", "ham", "steak",
		"salmon", "shrimp", "tuna", "fish", "lamb", "ground beef", "deli meat",
		"hot dog", "pork chop",
	}},
	{"Bakery", []string{
		"bread", "bagel", "muffin", "croissant", "tortilla", "bun", "roll", "cake",
		"baguette", "pita",
	}},
	{"Pantry", []string{
		"rice", "pasta", "flour", "sugar", "salt", "oil", "vinegar", "cereal",
		"oats", "beans", "black beans", "canned", "soup", "sauce", "spice",
		"peanut butter", "jam", "honey", "noodle", "ketchup", "mustard", "mayo",
	}},
	{"Frozen", []string{
		"frozen", "ice cream", "popsicle", "frozen pizza", "ice",
	}},
	{"Beverages", []string{
		"water", "juice", "soda", "coffee", "tea", "beer", "wine", "sparkling water",
		"kombucha", "lemonade",
	}},
	{"Snacks", []string{
		"chips", "crackers", "cookies", "pretzels", "popcorn", "nuts", "granola bar",
		"candy", "chocolate",
	}},
	{"Household", []string{
		"paper towels", "toilet paper", "dish soap", "detergent", "trash bags",
		"sponge", "foil", "plastic wrap", "bleach", "cleaner", "napkins",
	}},
	{"Personal Care", []string{
		"shampoo", "conditioner", "toothpaste", "toothbrush", "deodorant",
		"body wash", "soap", "lotion", "razor", "band-aid", "floss",
	}},
}
