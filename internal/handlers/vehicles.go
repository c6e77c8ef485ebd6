package handlers

import (
	"strconv"

	"github.com/bkurui/fleetrent-backend/internal/models"
	"github.com/bkurui/fleetrent-backend/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func vehicleResponse(v *models.Vehicle) gin.H {
	return gin.H{
		"id":             v.ID,
		"name":           v.Name,
		"category":       v.Category,
		"plateSeries":    v.PlateSeries,
		"imageUrl":       services.GetImageURL(v.ImageURL),
		"farePerDay":     v.FarePerDay,
		"totalUnits":     v.TotalUnits,
		"availableUnits": v.AvailableUnits(),
	}
}

// CreateVehicle adds a vehicle to the fleet. Multipart form so an image can
// be attached; the image lands in S3 (or the local fallback).
func CreateVehicle(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name        string  `form:"name" binding:"required"`
			Category    string  `form:"category" binding:"required"`
			PlateSeries string  `form:"plateSeries"`
			FarePerDay  float64 `form:"farePerDay" binding:"required,gt=0"`
			TotalUnits  int     `form:"totalUnits" binding:"required,gte=0"`
		}

		if err := c.ShouldBind(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		vehicle := models.Vehicle{
			Name:        input.Name,
			Category:    input.Category,
			PlateSeries: input.PlateSeries,
			FarePerDay:  input.FarePerDay,
			TotalUnits:  input.TotalUnits,
		}

		if file, err := c.FormFile("image"); err == nil {
			imagePath, err := services.UploadImage(file, "vehicles")
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to upload vehicle image"})
				return
			}
			vehicle.ImageURL = imagePath
		}

		if err := db.Create(&vehicle).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create vehicle"})
			return
		}

		c.JSON(201, vehicleResponse(&vehicle))
	}
}

// GetVehicles lists the fleet with derived availability.
func GetVehicles(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var vehicles []models.Vehicle
		query := db.Order("name ASC")
		if category := c.Query("category"); category != "" {
			query = query.Where("category = ?", category)
		}
		if err := query.Find(&vehicles).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch vehicles"})
			return
		}

		response := make([]gin.H, 0, len(vehicles))
		for i := range vehicles {
			response = append(response, vehicleResponse(&vehicles[i]))
		}
		c.JSON(200, response)
	}
}

// GetVehicle returns a single vehicle with derived availability.
func GetVehicle(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var vehicle models.Vehicle
		if err := db.First(&vehicle, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Vehicle not found"})
			return
		}
		c.JSON(200, vehicleResponse(&vehicle))
	}
}

// UpdateVehicle updates fare or fleet size. Shrinking totalUnits below the
// currently reserved count is refused, otherwise reserved bookings would
// overhang the fleet.
func UpdateVehicle(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid vehicle ID"})
			return
		}

		var input struct {
			Name        string   `json:"name"`
			Category    string   `json:"category"`
			PlateSeries string   `json:"plateSeries"`
			FarePerDay  *float64 `json:"farePerDay"`
			TotalUnits  *int     `json:"totalUnits"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var vehicle models.Vehicle
		if err := db.First(&vehicle, vehicleID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Vehicle not found"})
			return
		}

		if input.Name != "" {
			vehicle.Name = input.Name
		}
		if input.Category != "" {
			vehicle.Category = input.Category
		}
		if input.PlateSeries != "" {
			vehicle.PlateSeries = input.PlateSeries
		}
		if input.FarePerDay != nil {
			if *input.FarePerDay <= 0 {
				c.JSON(400, gin.H{"error": "farePerDay must be positive"})
				return
			}
			vehicle.FarePerDay = *input.FarePerDay
		}
		if input.TotalUnits != nil {
			if *input.TotalUnits < vehicle.ReservedUnits {
				c.JSON(400, gin.H{"error": "totalUnits cannot be below currently reserved units"})
				return
			}
			vehicle.TotalUnits = *input.TotalUnits
		}

		if err := db.Save(&vehicle).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update vehicle"})
			return
		}

		c.JSON(200, vehicleResponse(&vehicle))
	}
}
