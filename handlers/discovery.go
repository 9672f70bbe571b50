package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterDiscoveryRoutes mounts the SCIM discovery endpoints. These are
// static: they advertise exactly the subset the bridge implements (no PATCH
// semantics beyond attribute replace, filtering limited to equality, no bulk,
// no sorting).
func RegisterDiscoveryRoutes(rg *gin.RouterGroup) {
	rg.GET("/ServiceProviderConfig", func(c *gin.Context) {
		c.JSON(http.StatusOK, serviceProviderConfig)
	})
	rg.GET("/ResourceTypes", func(c *gin.Context) {
		c.JSON(http.StatusOK, resourceTypes)
	})
}

var serviceProviderConfig = gin.H{
	"schemas":        []string{"urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"},
	"patch":          gin.H{"supported": true},
	"bulk":           gin.H{"supported": false, "maxOperations": 0, "maxPayloadSize": 0},
	"filter":         gin.H{"supported": true, "maxResults": 200},
	"changePassword": gin.H{"supported": true},
	"sort":           gin.H{"supported": false},
	"etag":           gin.H{"supported": false},
	"authenticationSchemes": []gin.H{
		{
			"type":        "oauthbearertoken",
			"name":        "OAuth Bearer Token",
			"description": "Authentication via a bearer token in the Authorization header",
		},
	},
}

var resourceTypes = []gin.H{
	{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
		"id":       "User",
		"name":     "User",
		"endpoint": "/Users",
		"schema":   "urn:ietf:params:scim:schemas:core:2.0:User",
	},
	{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
		"id":       "Group",
		"name":     "Group",
		"endpoint": "/Groups",
		"schema":   "urn:ietf:params:scim:schemas:core:2.0:Group",
	},
}
