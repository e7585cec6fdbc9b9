// Package symptom models how sick the user is: a severity range on a closed
// three-step scale plus how long the symptoms have lasted. A Symptom derives
// every descriptive phrase used to fill a notice template.
package symptom
